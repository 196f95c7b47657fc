package device

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "peer", "service", "characteristic", "descriptor"
	UUIDs    []string // One or more identifiers (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	parentResource := "service"
	if e.Resource == "descriptor" {
		parentResource = "characteristic"
	}
	return fmt.Sprintf("%s %q not found in %s %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], parentResource, e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Link errors surfaced by the session. None of them terminates the process;
// each ends up as session state plus a human-readable message.
var (
	// ErrTransportUnavailable covers a powered-off adapter and adapter I/O failures.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrBluetoothOff is a TransportUnavailable flavour reported by the platform stack.
	ErrBluetoothOff = fmt.Errorf("%w: bluetooth is turned off", ErrTransportUnavailable)
	// ErrConnect means the peer was unreachable or the handshake failed.
	ErrConnect = errors.New("connect failed")
	// ErrMissingCapability means the expected receive/transmit characteristics are absent.
	ErrMissingCapability = errors.New("missing capability")
	// ErrUnknownPeer is returned when a connect targets an address the registry does not hold.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrInvalidState rejects a command the current link state does not accept.
	ErrInvalidState = errors.New("invalid link state")
)

// Operation errors
var (
	ErrTimeout     = errors.New("timeout")
	ErrUnsupported = errors.New("unsupported")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Peer describes a discoverable remote device.
//
// Rediscovery of the same address replaces the whole descriptor.
type Peer struct {
	Address            string   `json:"address"`
	Name               string   `json:"name"`
	RSSI               int      `json:"rssi"`
	Connectable        bool     `json:"connectable"`
	AdvertisedServices []string `json:"advertised_services,omitempty"`
}

// DisplayName returns the advertised name or a placeholder for nameless peers.
func (p Peer) DisplayName() string {
	if strings.TrimSpace(p.Name) == "" {
		return "(unknown)"
	}
	return p.Name
}

// Operations is the bit set of characteristic operations a peer supports.
type Operations uint8

const (
	OpRead Operations = 1 << iota
	OpWrite
	OpWriteWithoutResponse
	OpNotify
	OpIndicate
)

// Has reports whether all bits of op are set.
func (o Operations) Has(op Operations) bool {
	return o&op == op
}

func (o Operations) String() string {
	var names []string
	for _, p := range []struct {
		op   Operations
		name string
	}{
		{OpRead, "read"},
		{OpWrite, "write"},
		{OpWriteWithoutResponse, "write-without-response"},
		{OpNotify, "notify"},
		{OpIndicate, "indicate"},
	} {
		if o.Has(p.op) {
			names = append(names, p.name)
		}
	}
	return strings.Join(names, ",")
}

// CharacteristicInfo is the metadata of one characteristic of the connected peer.
type CharacteristicInfo struct {
	UUID        string     `json:"uuid"`
	Operations  Operations `json:"operations"`
	Value       []byte     `json:"value,omitempty"`
	Descriptors []string   `json:"descriptors,omitempty"`
}

// HasDescriptor reports whether the characteristic exposes the descriptor with the given UUID.
func (c CharacteristicInfo) HasDescriptor(uuid string) bool {
	want := NormalizeUUID(uuid)
	for _, d := range c.Descriptors {
		if NormalizeUUID(d) == want {
			return true
		}
	}
	return false
}

// ServiceInfo is a discovered service with its characteristics in discovery order.
type ServiceInfo struct {
	UUID            string               `json:"uuid"`
	Characteristics []CharacteristicInfo `json:"characteristics,omitempty"`
}
