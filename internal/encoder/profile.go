package encoder

import (
	"fmt"
	"strings"
)

// Channel identifies one logical control channel.
type Channel int

const (
	Roll Channel = iota
	Pitch
	Throttle
	Yaw
	Steering
)

func (c Channel) String() string {
	switch c {
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	case Throttle:
		return "throttle"
	case Yaw:
		return "yaw"
	case Steering:
		return "steering"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Axis is one stick axis of the control surface.
type Axis int

const (
	LeftX Axis = iota
	LeftY
	RightX
	RightY
)

// Profile is the deployment-time frame layout: which channels exist, where
// they live in the frame, how normalized values are scaled, and whether the
// vehicle accepts configuration pushes.
type Profile struct {
	Name       string
	Channels   []Channel // frame order; channel i occupies bytes [2i, 2i+2)
	Scale      float64
	ConfigPush bool
	Sticks     map[Axis]Channel
}

// Quad is the 4-channel aircraft layout: roll, pitch, throttle, yaw scaled by 1000.
var Quad = Profile{
	Name:     "quad",
	Channels: []Channel{Roll, Pitch, Throttle, Yaw},
	Scale:    1000,
	Sticks: map[Axis]Channel{
		LeftX:  Yaw,
		LeftY:  Throttle,
		RightX: Roll,
		RightY: Pitch,
	},
}

// Car is the 2-channel ground vehicle layout: throttle, steering scaled by 10000.
var Car = Profile{
	Name:       "car",
	Channels:   []Channel{Throttle, Steering},
	Scale:      10000,
	ConfigPush: true,
	Sticks: map[Axis]Channel{
		LeftY:  Throttle,
		RightX: Steering,
	},
}

// ProfileByName resolves a configured profile name.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Quad.Name:
		return Quad, nil
	case Car.Name:
		return Car, nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q (must be %s or %s)", name, Quad.Name, Car.Name)
	}
}

// FrameSize is the fixed length of a control frame for this profile.
func (p Profile) FrameSize() int {
	return 2 * len(p.Channels)
}

// Offset returns the byte offset of ch within the frame.
func (p Profile) Offset(ch Channel) (int, bool) {
	for i, c := range p.Channels {
		if c == ch {
			return 2 * i, true
		}
	}
	return 0, false
}
