package session

import (
	"github.com/srg/rclink/internal/device"
)

// State is the link's progress through scan, handshake and streaming.
type State int

const (
	Idle State = iota
	Scanning
	Connecting
	ServiceDiscovery
	CharacteristicDiscovery
	Subscribing
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case ServiceDiscovery:
		return "service-discovery"
	case CharacteristicDiscovery:
		return "characteristic-discovery"
	case Subscribing:
		return "subscribing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Linked reports whether the state belongs to a connection attempt or a live link.
func (s State) Linked() bool {
	return s >= Connecting
}

// CatalogValid reports whether the capability catalog may hold data in this state.
func (s State) CatalogValid() bool {
	return s >= ServiceDiscovery
}

// Kind tells observers what changed.
type Kind int

const (
	StateChanged Kind = iota
	DevicesUpdated
	ServicesUpdated
	CharacteristicsUpdated
	StatusChanged
	ScanStateChanged
	LinkReadyChanged
	PeerChanged
	Disconnected
	DataReceived
	ConfigChanged
)

func (k Kind) String() string {
	switch k {
	case StateChanged:
		return "state-changed"
	case DevicesUpdated:
		return "devices-updated"
	case ServicesUpdated:
		return "services-updated"
	case CharacteristicsUpdated:
		return "characteristics-updated"
	case StatusChanged:
		return "status-changed"
	case ScanStateChanged:
		return "scan-state-changed"
	case LinkReadyChanged:
		return "link-ready-changed"
	case PeerChanged:
		return "peer-changed"
	case Disconnected:
		return "disconnected"
	case DataReceived:
		return "data-received"
	case ConfigChanged:
		return "config-changed"
	default:
		return "unknown"
	}
}

// Notification is one observable change. Only the fields relevant to Kind are set.
type Notification struct {
	Kind     Kind
	State    State
	Previous State
	Err      error
	Status   string
	Scanning bool
	Ready    bool
	Peer     device.Peer
	Count    int
	Data     []byte
}

// Snapshot is the session's observable state at one point in time.
type Snapshot struct {
	State    State
	Status   string
	Scanning bool
	Ready    bool
	Peer     device.Peer
	HasPeer  bool
	LastErr  error
}
