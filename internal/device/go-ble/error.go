package goble

import (
	"fmt"
	"strings"

	"github.com/srg/rclink/internal/device"
)

// errorPatterns maps lower-cased fragments of go-ble (CoreBluetooth, HCI)
// error messages to the device error taxonomy. First match wins.
var errorPatterns = []struct {
	fragment string
	target   error
}{
	// darwin: "central manager has invalid state: have=4 want=5: is Bluetooth turned on?"
	{"have=4 want=5", device.ErrBluetoothOff},
	{"bluetooth is turned off", device.ErrBluetoothOff},
	{"powered off", device.ErrBluetoothOff},
	{"device not connected", device.ErrNotConnected},
	{"device already connected", device.ErrAlreadyConnected},
	{"disconnected", device.ErrNotConnected},
	{"connection is not initialized", device.ErrNotInitialized},
	{"can't init hci", device.ErrTransportUnavailable},
	{"operation not permitted", device.ErrTransportUnavailable},
	{"input/output error", device.ErrTransportUnavailable},
}

// NormalizeError wraps known go-ble errors with the matching device error so
// callers can use errors.Is. The original message is preserved; unknown
// errors are returned unchanged.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(msg, p.fragment) {
			return fmt.Errorf("%w: %v", p.target, err)
		}
	}
	return err
}
