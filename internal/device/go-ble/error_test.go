package goble

import (
	"errors"
	"testing"

	"github.com/srg/rclink/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "darwin powered off", err: errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"), target: device.ErrBluetoothOff},
		{name: "powered off", err: errors.New("adapter Powered Off"), target: device.ErrBluetoothOff},
		{name: "not connected", err: errors.New("device not connected"), target: device.ErrNotConnected},
		{name: "disconnected", err: errors.New("peer disconnected"), target: device.ErrNotConnected},
		{name: "already connected", err: errors.New("device already connected"), target: device.ErrAlreadyConnected},
		{name: "not initialized", err: errors.New("connection is not initialized"), target: device.ErrNotInitialized},
		{name: "hci init", err: errors.New("can't init hci: no devices available"), target: device.ErrTransportUnavailable},
		{name: "permissions", err: errors.New("socket: operation not permitted"), target: device.ErrTransportUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeError(tt.err)
			assert.ErrorIs(t, got, tt.target, "normalized error MUST match its category")
			assert.Contains(t, got.Error(), tt.err.Error(), "normalized error MUST keep the original message")
		})
	}
}

func TestNormalizeError_PassThrough(t *testing.T) {
	assert.NoError(t, NormalizeError(nil))

	original := errors.New("att: attribute not long")
	assert.Same(t, original, NormalizeError(original), "unknown errors MUST be returned unchanged")
}
