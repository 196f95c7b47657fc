package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/device/go-ble"
)

// TransportFactory creates the wireless transport the link session drives.
// This is a variable so that it can be overridden in tests.
var TransportFactory = func(logger *logrus.Logger) (device.Transport, error) {
	return goble.NewTransport(logger), nil
}

// NewTransport creates a transport using the current TransportFactory.
func NewTransport(logger *logrus.Logger) (device.Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}
	return TransportFactory(logger)
}
