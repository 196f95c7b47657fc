//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
	"github.com/sirupsen/logrus"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return darwin.NewDevice()
}

// CoreBluetooth resolves the address type itself; random addressing cannot be forced.
func dialAddr(address string, random bool, logger *logrus.Logger) ble.Addr {
	if random {
		logger.WithField("address", address).Debug("Random address type is selected by CoreBluetooth")
	}
	return ble.NewAddr(address)
}
