package encoder

import (
	"fmt"
)

// ConfigFrameSize is the length of a configuration push.
const ConfigFrameSize = 5

// Config frame flag bits.
const (
	FlagInvertThrottle byte = 1 << iota
	FlagInvertSteering
)

// MaxPercentage bounds every percentage field of the vehicle config.
const MaxPercentage = 100

// VehicleConfig is the persistent configuration pushed to the vehicle.
type VehicleConfig struct {
	InvertThrottle          bool  `json:"invert_throttle" yaml:"invert_throttle" default:"true"`
	InvertSteering          bool  `json:"invert_steering" yaml:"invert_steering" default:"false"`
	SteeringPercentage      uint8 `json:"steering_percentage" yaml:"steering_percentage" default:"100"`
	ThrottleFrontPercentage uint8 `json:"throttle_front_percentage" yaml:"throttle_front_percentage" default:"50"`
	ThrottleBackPercentage  uint8 `json:"throttle_back_percentage" yaml:"throttle_back_percentage" default:"30"`
}

// DefaultVehicleConfig matches what the vehicle firmware ships with.
func DefaultVehicleConfig() VehicleConfig {
	return VehicleConfig{
		InvertThrottle:          true,
		SteeringPercentage:      100,
		ThrottleFrontPercentage: 50,
		ThrottleBackPercentage:  30,
	}
}

// Validate checks every percentage is within 0..100.
func (c VehicleConfig) Validate() error {
	for _, f := range []struct {
		name  string
		value uint8
	}{
		{"steering", c.SteeringPercentage},
		{"throttle front", c.ThrottleFrontPercentage},
		{"throttle back", c.ThrottleBackPercentage},
	} {
		if f.value > MaxPercentage {
			return fmt.Errorf("%s percentage %d exceeds %d", f.name, f.value, MaxPercentage)
		}
	}
	return nil
}

// BuildConfigFrame encodes cfg as flags, steering%, throttle-front%,
// throttle-back% and one reserved zero byte.
func BuildConfigFrame(cfg VehicleConfig) (Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var flags byte
	if cfg.InvertThrottle {
		flags |= FlagInvertThrottle
	}
	if cfg.InvertSteering {
		flags |= FlagInvertSteering
	}

	return Frame{
		flags,
		cfg.SteeringPercentage,
		cfg.ThrottleFrontPercentage,
		cfg.ThrottleBackPercentage,
		0,
	}, nil
}

// Config returns the current vehicle configuration.
func (e *Encoder) Config() VehicleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// ConfigFrame builds the configuration push from the current settings.
func (e *Encoder) ConfigFrame() (Frame, error) {
	e.mu.RLock()
	cfg := e.config
	e.mu.RUnlock()
	return BuildConfigFrame(cfg)
}

// SetInvertThrottle reports whether the setting changed.
func (e *Encoder) SetInvertThrottle(v bool) bool {
	return e.updateConfig(func(c *VehicleConfig) bool {
		if c.InvertThrottle == v {
			return false
		}
		c.InvertThrottle = v
		return true
	})
}

// SetInvertSteering reports whether the setting changed.
func (e *Encoder) SetInvertSteering(v bool) bool {
	return e.updateConfig(func(c *VehicleConfig) bool {
		if c.InvertSteering == v {
			return false
		}
		c.InvertSteering = v
		return true
	})
}

// SetSteeringPercentage ignores values above 100 and unchanged values.
func (e *Encoder) SetSteeringPercentage(v uint8) bool {
	return e.setPercentage(v, func(c *VehicleConfig) *uint8 { return &c.SteeringPercentage })
}

// SetThrottleFrontPercentage ignores values above 100 and unchanged values.
func (e *Encoder) SetThrottleFrontPercentage(v uint8) bool {
	return e.setPercentage(v, func(c *VehicleConfig) *uint8 { return &c.ThrottleFrontPercentage })
}

// SetThrottleBackPercentage ignores values above 100 and unchanged values.
func (e *Encoder) SetThrottleBackPercentage(v uint8) bool {
	return e.setPercentage(v, func(c *VehicleConfig) *uint8 { return &c.ThrottleBackPercentage })
}

func (e *Encoder) setPercentage(v uint8, field func(*VehicleConfig) *uint8) bool {
	if v > MaxPercentage {
		return false
	}
	return e.updateConfig(func(c *VehicleConfig) bool {
		p := field(c)
		if *p == v {
			return false
		}
		*p = v
		return true
	})
}

func (e *Encoder) updateConfig(apply func(*VehicleConfig) bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return apply(&e.config)
}
