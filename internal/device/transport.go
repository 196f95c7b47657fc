package device

import (
	"time"
)

// WriteMode selects the delivery guarantee of a characteristic write.
type WriteMode int

const (
	WriteWithoutResponse WriteMode = iota
	WriteWithResponse
)

func (m WriteMode) String() string {
	if m == WriteWithResponse {
		return "with-response"
	}
	return "without-response"
}

// LinkStatus is the transport's own view of the connection.
type LinkStatus int

const (
	LinkUnconnected LinkStatus = iota
	LinkConnecting
	LinkConnected
	LinkDiscovered
	LinkClosing
)

// ServiceState tracks characteristic discovery of one remote service.
type ServiceState int

const (
	ServiceRemote ServiceState = iota // details not discovered yet
	ServiceDiscovering
	ServiceDetailsDiscovered
	ServiceInvalid
)

func (s ServiceState) String() string {
	switch s {
	case ServiceRemote:
		return "remote"
	case ServiceDiscovering:
		return "discovering"
	case ServiceDetailsDiscovered:
		return "discovered"
	default:
		return "invalid"
	}
}

// ConnectOptions carries per-connection parameters.
type ConnectOptions struct {
	ConnectTimeout time.Duration
	RandomAddress  bool // remote uses a random (not public) device address
}

// Event is a transport notification. Events of one scan or one connection
// are delivered to the EventSink passed when that stream was started.
type Event interface {
	isTransportEvent()
}

// EventSink receives transport events. Implementations must not block.
type EventSink func(Event)

// Scan stream events.
type (
	PeerDiscovered struct{ Peer Peer }
	ScanFinished   struct{}
	ScanFailed     struct{ Err error }
)

// Connection stream events.
type (
	Connected    struct{}
	Disconnected struct{ Err error }
	// ConnectFailed reports a failed dial or handshake.
	ConnectFailed            struct{ Err error }
	ServiceDiscovered        struct{ UUID string }
	ServiceDiscoveryFinished struct{}
	DetailsDiscovered        struct {
		Service         string
		State           ServiceState
		Characteristics []CharacteristicInfo
		Err             error
	}
	DescriptorWritten struct {
		Characteristic string
		Descriptor     string
		Err            error
	}
	CharacteristicChanged struct {
		Characteristic string
		Data           []byte
	}
	// TransportFailed is an asynchronous adapter error outside any single request.
	TransportFailed struct{ Err error }
)

func (PeerDiscovered) isTransportEvent()           {}
func (ScanFinished) isTransportEvent()             {}
func (ScanFailed) isTransportEvent()               {}
func (Connected) isTransportEvent()                {}
func (Disconnected) isTransportEvent()             {}
func (ConnectFailed) isTransportEvent()            {}
func (ServiceDiscovered) isTransportEvent()        {}
func (ServiceDiscoveryFinished) isTransportEvent() {}
func (DetailsDiscovered) isTransportEvent()        {}
func (DescriptorWritten) isTransportEvent()        {}
func (CharacteristicChanged) isTransportEvent()    {}
func (TransportFailed) isTransportEvent()          {}

// Scanner is the discovery half of a transport.
type Scanner interface {
	// StartScan begins discovery; it returns once scanning is underway.
	// The transport emits ScanFinished after timeout or StopScan.
	StartScan(timeout time.Duration, sink EventSink) error
	StopScan()
}

// Transport is the wireless capability set the link session drives.
// Every method returns promptly; outcomes arrive as events.
type Transport interface {
	Scanner

	Connect(peer Peer, opts ConnectOptions, sink EventSink) error
	DiscoverServices() error
	DiscoverCharacteristics(service string) error
	ServiceState(service string) ServiceState
	Characteristics(service string) []CharacteristicInfo
	WriteCharacteristic(characteristic string, data []byte, mode WriteMode) error
	WriteDescriptor(characteristic, descriptor string, data []byte) error
	Disconnect() error
	ConnectionState() LinkStatus
}
