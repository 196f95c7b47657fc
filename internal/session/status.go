package session

import (
	"errors"

	"github.com/srg/rclink/internal/device"
)

// Status lines shown to the operator.
const (
	StatusSearch            = "Search"
	StatusScanning          = "Scanning..."
	StatusNoPeers           = "No Low Energy devices found"
	StatusScanComplete      = "Scan complete"
	StatusConnecting        = "Connecting to device..."
	StatusDiscoverServices  = "Discovering services..."
	StatusDiscoverDetails   = "Discovering details..."
	StatusServiceMissing    = "Could not find the right service"
	StatusCharsMissing      = "Missing Rx or Tx characteristics"
	StatusSubscribing       = "Enabling notifications..."
	StatusConnected         = "Connected"
	StatusDisconnected      = "Disconnected"
	StatusUnknownService    = "Service not available"
	StatusAdapterPoweredOff = "The Bluetooth adaptor is powered off, power it on before doing discovery."
	StatusAdapterIO         = "Writing or reading from the device resulted in an error."
)

// StatusForError renders err the way the operator sees it.
func StatusForError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, device.ErrBluetoothOff):
		return StatusAdapterPoweredOff
	case errors.Is(err, device.ErrTransportUnavailable):
		return StatusAdapterIO
	default:
		return "Error: " + err.Error()
	}
}
