package testutils

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/srg/rclink/internal/device"
)

// Well-known UUIDs of the control service used across tests.
const (
	ControlServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	TxCharUUID         = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	RxCharUUID         = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// Write is one recorded characteristic write.
type Write struct {
	Characteristic string
	Data           []byte
	Mode           device.WriteMode
}

// FakeTransport is a scriptable in-memory device.Transport.
//
// Every asynchronous outcome is emitted synchronously into the stream's sink,
// from inside the call that triggers it. Change script fields through Configure
// once the transport is in use.
type FakeTransport struct {
	mu sync.Mutex

	// Scan behaviour.
	Peers        []device.Peer
	FinishScan   bool  // emit ScanFinished right after Peers
	StartScanErr error // returned by StartScan
	ScanFailure  error // emitted as ScanFailed instead of peers

	// Connection behaviour.
	ConnectErr     error // returned by Connect
	ConnectFailure error // emitted as ConnectFailed
	SilentConnect  bool  // never answer a connect
	SilentServices bool  // never answer service discovery
	Services       []device.ServiceInfo
	// Cached marks services whose details are already known at discovery time.
	Cached        map[string]bool
	DetailsState  device.ServiceState // emitted by DiscoverCharacteristics; zero means Discovered
	DetailsErr    error
	SilentDetails bool // never answer characteristic discovery
	DescriptorErr error
	SilentCCCD    bool // accept descriptor writes without confirming them
	WriteErr      error

	status    device.LinkStatus
	states    map[string]device.ServiceState
	scanSink  device.EventSink
	connSink  device.EventSink
	calls     []string
	writes    []Write
	cccdWrite []string
}

// NewFakeTransport returns a transport whose single peer offers the control service.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		Peers: []device.Peer{
			{Address: "AA:BB:CC:DD:EE:01", Name: "rc-car", RSSI: -48, Connectable: true},
		},
		FinishScan: true,
		Services:   []device.ServiceInfo{ControlService()},
	}
}

// ControlService describes the Nordic-UART style control service.
func ControlService() device.ServiceInfo {
	return device.ServiceInfo{
		UUID: ControlServiceUUID,
		Characteristics: []device.CharacteristicInfo{
			{UUID: TxCharUUID, Operations: device.OpWrite | device.OpWriteWithoutResponse},
			{UUID: RxCharUUID, Operations: device.OpNotify, Descriptors: []string{"2902"}},
		},
	}
}

// Configure mutates the script under the transport's lock.
func (f *FakeTransport) Configure(fn func(f *FakeTransport)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *FakeTransport) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// StartScan emits the scripted scan outcome.
func (f *FakeTransport) StartScan(timeout time.Duration, sink device.EventSink) error {
	f.mu.Lock()
	f.record("StartScan")
	if f.StartScanErr != nil {
		f.mu.Unlock()
		return f.StartScanErr
	}
	f.scanSink = sink
	peers := append([]device.Peer(nil), f.Peers...)
	failure, finish := f.ScanFailure, f.FinishScan
	f.mu.Unlock()

	if failure != nil {
		sink(device.ScanFailed{Err: failure})
		return nil
	}
	for _, p := range peers {
		sink(device.PeerDiscovered{Peer: p})
	}
	if finish {
		sink(device.ScanFinished{})
	}
	return nil
}

// StopScan emits ScanFinished on the running scan stream.
func (f *FakeTransport) StopScan() {
	f.mu.Lock()
	f.record("StopScan")
	sink := f.scanSink
	f.scanSink = nil
	f.mu.Unlock()

	if sink != nil {
		sink(device.ScanFinished{})
	}
}

// EmitScan injects ev into the current scan stream.
func (f *FakeTransport) EmitScan(ev device.Event) {
	f.mu.Lock()
	sink := f.scanSink
	f.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (f *FakeTransport) Connect(peer device.Peer, opts device.ConnectOptions, sink device.EventSink) error {
	f.mu.Lock()
	f.record("Connect %s random=%t", peer.Address, opts.RandomAddress)
	if f.ConnectErr != nil {
		f.mu.Unlock()
		return f.ConnectErr
	}
	f.connSink = sink
	f.states = map[string]device.ServiceState{}
	for uuid := range f.Cached {
		f.states[device.NormalizeUUID(uuid)] = device.ServiceDetailsDiscovered
	}
	f.status = device.LinkConnecting
	failure, silent := f.ConnectFailure, f.SilentConnect
	if failure == nil && !silent {
		f.status = device.LinkConnected
	}
	f.mu.Unlock()

	switch {
	case silent:
	case failure != nil:
		sink(device.ConnectFailed{Err: failure})
	default:
		sink(device.Connected{})
	}
	return nil
}

func (f *FakeTransport) DiscoverServices() error {
	f.mu.Lock()
	f.record("DiscoverServices")
	sink := f.connSink
	services := append([]device.ServiceInfo(nil), f.Services...)
	silent := f.SilentServices
	f.mu.Unlock()

	if silent || sink == nil {
		return nil
	}
	for _, s := range services {
		sink(device.ServiceDiscovered{UUID: s.UUID})
	}
	sink(device.ServiceDiscoveryFinished{})
	return nil
}

func (f *FakeTransport) DiscoverCharacteristics(service string) error {
	f.mu.Lock()
	f.record("DiscoverCharacteristics %s", device.ShortenUUID(service))
	if f.SilentDetails {
		if f.states == nil {
			f.states = map[string]device.ServiceState{}
		}
		f.states[device.NormalizeUUID(service)] = device.ServiceDiscovering
		f.mu.Unlock()
		return nil
	}
	sink := f.connSink
	state := f.DetailsState
	if state == device.ServiceRemote {
		state = device.ServiceDetailsDiscovered
	}
	err := f.DetailsErr
	if f.states == nil {
		f.states = map[string]device.ServiceState{}
	}
	f.states[device.NormalizeUUID(service)] = state
	chars := f.characteristicsLocked(service)
	f.mu.Unlock()

	if sink != nil {
		sink(device.DetailsDiscovered{Service: service, State: state, Characteristics: chars, Err: err})
	}
	return nil
}

// ForgetDetails drops discovered characteristic state so the next selection
// has to discover again.
func (f *FakeTransport) ForgetDetails() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = map[string]device.ServiceState{}
}

func (f *FakeTransport) ServiceState(service string) device.ServiceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[device.NormalizeUUID(service)]
}

func (f *FakeTransport) Characteristics(service string) []device.CharacteristicInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.characteristicsLocked(service)
}

func (f *FakeTransport) characteristicsLocked(service string) []device.CharacteristicInfo {
	for _, s := range f.Services {
		if device.SameUUID(s.UUID, service) {
			return append([]device.CharacteristicInfo(nil), s.Characteristics...)
		}
	}
	return nil
}

func (f *FakeTransport) WriteCharacteristic(characteristic string, data []byte, mode device.WriteMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.writes = append(f.writes, Write{
		Characteristic: characteristic,
		Data:           append([]byte(nil), data...),
		Mode:           mode,
	})
	return nil
}

func (f *FakeTransport) WriteDescriptor(characteristic, descriptor string, data []byte) error {
	f.mu.Lock()
	f.record("WriteDescriptor %s/%s %x", device.ShortenUUID(characteristic), descriptor, data)
	f.cccdWrite = append(f.cccdWrite, characteristic)
	sink := f.connSink
	err, silent := f.DescriptorErr, f.SilentCCCD
	f.mu.Unlock()

	if sink != nil && !silent {
		sink(device.DescriptorWritten{Characteristic: characteristic, Descriptor: descriptor, Err: err})
	}
	return nil
}

// Disconnect drops the link and reports it on the connection stream.
func (f *FakeTransport) Disconnect() error {
	f.mu.Lock()
	f.record("Disconnect")
	sink := f.connSink
	f.connSink = nil
	wasUp := f.status != device.LinkUnconnected
	f.status = device.LinkUnconnected
	f.mu.Unlock()

	if sink != nil && wasUp {
		sink(device.Disconnected{})
	}
	return nil
}

func (f *FakeTransport) ConnectionState() device.LinkStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Emit injects ev into the current connection stream, as the peer would.
func (f *FakeTransport) Emit(ev device.Event) {
	f.mu.Lock()
	sink := f.connSink
	if _, ok := ev.(device.Disconnected); ok {
		f.status = device.LinkUnconnected
	}
	f.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

// Calls returns the recorded method calls, oldest first.
func (f *FakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts recorded calls starting with prefix.
func (f *FakeTransport) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Writes returns the recorded characteristic writes, oldest first.
func (f *FakeTransport) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// SubscribedCharacteristics returns the characteristics that had notifications enabled.
func (f *FakeTransport) SubscribedCharacteristics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cccdWrite...)
}
