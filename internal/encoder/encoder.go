// Package encoder turns joystick input into fixed-size control frames.
package encoder

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// Frame is a fixed-size binary payload sent to the vehicle.
type Frame []byte

// Encoder holds the latest control frame and the vehicle configuration.
//
// Axis updates take the write lock; frame reads and config frame builds take
// the read lock. Nothing that can block runs under either lock.
type Encoder struct {
	profile Profile

	mu     sync.RWMutex
	frame  Frame
	config VehicleConfig
}

// New creates an encoder with a zeroed frame and the given vehicle config.
func New(profile Profile, config VehicleConfig) *Encoder {
	return &Encoder{
		profile: profile,
		frame:   make(Frame, profile.FrameSize()),
		config:  config,
	}
}

// Profile returns the frame layout in use.
func (e *Encoder) Profile() Profile {
	return e.profile
}

// SetAxis stores value, normalized to [-1, 1], into channel ch.
func (e *Encoder) SetAxis(ch Channel, value float64) error {
	off, ok := e.profile.Offset(ch)
	if !ok {
		return fmt.Errorf("channel %s is not part of profile %s", ch, e.profile.Name)
	}

	raw := e.scale(value)

	e.mu.Lock()
	binary.LittleEndian.PutUint16(e.frame[off:], uint16(raw))
	e.mu.Unlock()
	return nil
}

// LeftStickMoved updates both axes of the left stick atomically.
func (e *Encoder) LeftStickMoved(x, y float64) {
	e.setStick(LeftX, x, LeftY, y)
}

// RightStickMoved updates both axes of the right stick atomically.
func (e *Encoder) RightStickMoved(x, y float64) {
	e.setStick(RightX, x, RightY, y)
}

func (e *Encoder) setStick(ax Axis, x float64, ay Axis, y float64) {
	type update struct {
		off int
		raw int16
	}
	var updates [2]update
	n := 0
	for _, a := range []struct {
		axis  Axis
		value float64
	}{{ax, x}, {ay, y}} {
		ch, bound := e.profile.Sticks[a.axis]
		if !bound {
			continue
		}
		off, ok := e.profile.Offset(ch)
		if !ok {
			continue
		}
		updates[n] = update{off: off, raw: e.scale(a.value)}
		n++
	}

	e.mu.Lock()
	for _, u := range updates[:n] {
		binary.LittleEndian.PutUint16(e.frame[u.off:], uint16(u.raw))
	}
	e.mu.Unlock()
}

// CurrentFrame returns a copy of the latest frame.
func (e *Encoder) CurrentFrame() Frame {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append(Frame(nil), e.frame...)
}

// Value decodes channel ch from the current frame.
func (e *Encoder) Value(ch Channel) (int16, bool) {
	off, ok := e.profile.Offset(ch)
	if !ok {
		return 0, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return int16(binary.LittleEndian.Uint16(e.frame[off:])), true
}

// scale maps a normalized axis value to the profile's int16 range.
// Inputs outside [-1, 1] are clamped so the multiplication cannot overflow.
func (e *Encoder) scale(v float64) int16 {
	switch {
	case math.IsNaN(v):
		v = 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int16(math.Round(v * e.profile.Scale))
}
