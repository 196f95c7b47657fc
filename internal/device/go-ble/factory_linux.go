//go:build linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci"
	"github.com/sirupsen/logrus"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return linux.NewDevice()
}

func dialAddr(address string, random bool, logger *logrus.Logger) ble.Addr {
	addr := ble.NewAddr(address)
	if random {
		logger.WithField("address", address).Debug("Dialing with random address type")
		return hci.RandomAddress{Addr: addr}
	}
	return addr
}
