// Package device defines the Bluetooth Low Energy vocabulary shared by the
// link session and its transports.
//
// It contains:
//   - Peer, ServiceInfo and CharacteristicInfo descriptors
//   - the Transport capability interface consumed by the link session
//   - transport events delivered through an EventSink
//   - the error taxonomy (transport unavailable, connect, missing capability,
//     unknown peer) together with go-ble style connection errors
//   - UUID normalization and validation helpers
package device
