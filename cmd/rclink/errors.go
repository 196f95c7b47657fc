package main

import (
	"errors"
	"strings"

	"github.com/srg/rclink/internal/controller"
	"github.com/srg/rclink/internal/device"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the link dropped while a command was using it.
	ErrConnectionLost = errors.New("connection lost")
	// ErrPeerNotFound indicates a scan finished without seeing the requested address.
	ErrPeerNotFound = errors.New("peer not found")
	// ErrNotTerminal indicates an interactive command was run without a TTY.
	ErrNotTerminal = errors.New("stdin is not a terminal")
)

// FormatUserError turns an error chain into a single line with a hint for
// the failures a user can act on.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	var hint string
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		hint = "turn Bluetooth on and try again"
	case errors.Is(err, device.ErrTransportUnavailable):
		hint = "check that the Bluetooth adapter is present and accessible"
	case errors.Is(err, ErrPeerNotFound), errors.Is(err, device.ErrUnknownPeer):
		hint = "make sure the vehicle is powered on and advertising, then run 'rclink scan'"
	case errors.Is(err, device.ErrMissingCapability):
		hint = "the peer does not expose the configured control service"
	case errors.Is(err, device.ErrTimeout):
		hint = "the vehicle did not answer in time; move closer and retry"
	case errors.Is(err, controller.ErrConfigPushUnsupported):
		hint = "use --profile car or set profile: car in the configuration"
	case errors.Is(err, ErrNotTerminal):
		hint = "run the command from an interactive terminal"
	}

	msg = strings.TrimSpace(msg)
	if hint == "" {
		return msg
	}
	return msg + " (" + hint + ")"
}
