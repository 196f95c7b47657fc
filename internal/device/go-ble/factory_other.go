//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/device"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE adapter support on %s", device.ErrUnsupported, runtime.GOOS)
}

func dialAddr(address string, _ bool, _ *logrus.Logger) ble.Addr {
	return ble.NewAddr(address)
}
