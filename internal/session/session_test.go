package session_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/srg/rclink/internal/catalog"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/events"
	"github.com/srg/rclink/internal/session"
	"github.com/srg/rclink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

const (
	carAddress  = "AA:BB:CC:DD:EE:01"
	quadAddress = "AA:BB:CC:DD:EE:02"
	waitTimeout = 2 * time.Second
	quiet       = 50 * time.Millisecond
)

type SessionTestSuite struct {
	suite.Suite

	helper    *testutils.TestHelper
	transport *testutils.FakeTransport
	session   *session.Session
	sub       *events.Subscription[session.Notification]
}

func (s *SessionTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.transport = testutils.NewFakeTransport()
	s.start(session.Options{})
}

func (s *SessionTestSuite) TearDownTest() {
	if s.session != nil {
		s.session.Close()
	}
}

// start (re)creates the session; zero option fields get test defaults.
func (s *SessionTestSuite) start(opts session.Options) {
	if s.session != nil {
		s.session.Close()
	}
	if opts.PrimaryService == "" {
		opts.PrimaryService = testutils.ControlServiceUUID
	}
	if opts.Roles == (catalog.Roles{}) {
		opts.Roles = catalog.Roles{Receive: testutils.RxCharUUID, Transmit: testutils.TxCharUUID}
	}
	if opts.ScanTimeout == 0 {
		opts.ScanTimeout = 5 * time.Second
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}

	s.session = session.New(s.transport, opts, s.helper.Logger)
	s.sub = s.session.Subscribe()
	s.session.Start(context.Background())
}

func (s *SessionTestSuite) waitFor(stop func(session.Notification) bool) []session.Notification {
	return testutils.Collect(s.T(), s.sub, waitTimeout, stop)
}

func (s *SessionTestSuite) settle() []session.Notification {
	return testutils.Drain(s.sub, quiet)
}

// sync waits until every command posted so far has been handled.
func (s *SessionTestSuite) sync() []session.Notification {
	marker := "sync-" + time.Now().Format(time.RFC3339Nano)
	s.session.ReportStatus(marker)
	return s.waitFor(isStatus(marker))
}

func (s *SessionTestSuite) scan() []session.Notification {
	s.session.StartScan()
	return s.waitFor(func(n session.Notification) bool {
		return n.Kind == session.StatusChanged &&
			(n.Status == session.StatusScanComplete || n.Status == session.StatusNoPeers)
	})
}

func (s *SessionTestSuite) connectReady(address string) []session.Notification {
	s.Require().NoError(s.session.Connect(address))
	return s.waitFor(isReady(true))
}

func isStatus(msg string) func(session.Notification) bool {
	return func(n session.Notification) bool {
		return n.Kind == session.StatusChanged && n.Status == msg
	}
}

func isState(st session.State) func(session.Notification) bool {
	return func(n session.Notification) bool {
		return n.Kind == session.StateChanged && n.State == st
	}
}

func isReady(v bool) func(session.Notification) bool {
	return func(n session.Notification) bool {
		return n.Kind == session.LinkReadyChanged && n.Ready == v
	}
}

func states(ns []session.Notification) []session.State {
	var out []session.State
	for _, n := range ns {
		if n.Kind == session.StateChanged {
			out = append(out, n.State)
		}
	}
	return out
}

func count(ns []session.Notification, kind session.Kind) int {
	c := 0
	for _, n := range ns {
		if n.Kind == kind {
			c++
		}
	}
	return c
}

func (s *SessionTestSuite) TestHandshakeRunsInOrder() {
	// GOAL: Verify a connect walks every handshake state in order and ends Ready
	//
	// TEST SCENARIO: Scan finds one peer → connect → Connecting, ServiceDiscovery,
	// CharacteristicDiscovery, Subscribing, Ready → notifications enabled on Rx only

	scanned := s.scan()
	s.Equal([]session.State{session.Scanning, session.Idle}, states(scanned))

	got := s.connectReady(carAddress)

	s.Equal([]session.State{
		session.Connecting,
		session.ServiceDiscovery,
		session.CharacteristicDiscovery,
		session.Subscribing,
		session.Ready,
	}, states(got), "handshake MUST visit every state exactly once, in order")

	snap := s.session.Snapshot()
	s.Equal(session.Ready, snap.State)
	s.True(snap.Ready)
	s.True(s.session.Ready())
	s.Equal(session.StatusConnected, snap.Status)
	s.Equal(carAddress, snap.Peer.Address)
	s.NoError(snap.LastErr)

	s.Equal([]string{testutils.RxCharUUID}, s.transport.SubscribedCharacteristics(),
		"MUST enable notifications only on characteristics carrying a CCCD")
	s.Contains(s.transport.Calls(), "WriteDescriptor 6e400003/2902 0100")

	cat := s.session.Catalog()
	s.Len(cat.Services(), 1)
	s.Len(cat.Characteristics(), 2)
	_, ok := cat.CharacteristicByRole(catalog.RoleTransmit)
	s.True(ok)
}

func (s *SessionTestSuite) TestScanSkipsNonConnectablePeers() {
	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.Peers = []device.Peer{
			{Address: carAddress, Name: "rc-car", Connectable: true},
			{Address: "11:22:33:44:55:66", Name: "beacon"},
			{Address: quadAddress, Name: "quad", Connectable: true},
		}
	})

	s.scan()

	peers := s.session.Registry().List()
	s.Require().Len(peers, 2)
	s.Equal(carAddress, peers[0].Address)
	s.Equal(quadAddress, peers[1].Address)
	s.Equal(session.StatusScanComplete, s.session.Snapshot().Status)
}

func (s *SessionTestSuite) TestScanWithoutPeersReportsEmpty() {
	s.transport.Configure(func(f *testutils.FakeTransport) { f.Peers = nil })

	s.scan()

	s.Equal(session.StatusNoPeers, s.session.Snapshot().Status)
	s.Equal(0, s.session.Registry().Len())
}

func (s *SessionTestSuite) TestScanClearsRegistry() {
	s.scan()
	s.Equal(1, s.session.Registry().Len())

	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.Peers = []device.Peer{{Address: quadAddress, Name: "quad", Connectable: true}}
	})
	s.scan()

	peers := s.session.Registry().List()
	s.Require().Len(peers, 1)
	s.Equal(quadAddress, peers[0].Address, "a new scan MUST start from an empty registry")
}

func (s *SessionTestSuite) TestStartScanWithAdapterOff() {
	s.transport.Configure(func(f *testutils.FakeTransport) { f.StartScanErr = device.ErrBluetoothOff })

	s.session.StartScan()
	s.waitFor(isStatus(session.StatusAdapterPoweredOff))

	snap := s.session.Snapshot()
	s.Equal(session.Idle, snap.State)
	s.False(snap.Scanning)
	s.ErrorIs(snap.LastErr, device.ErrTransportUnavailable)
}

func (s *SessionTestSuite) TestScanFailureReturnsToIdle() {
	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.ScanFailure = errors.New("adapter I/O: hci reset")
	})

	s.session.StartScan()
	got := s.waitFor(isState(session.Idle))

	s.Equal([]session.State{session.Scanning, session.Idle}, states(got))
	s.Error(got[len(got)-1].Err)
	s.False(s.session.Snapshot().Scanning)
}

func (s *SessionTestSuite) TestStopScanWhenIdleIsNoop() {
	s.session.StopScan()

	s.sync()
	s.Empty(s.settle(), "stopScan while idle MUST NOT notify")
	s.Zero(s.transport.CallCount("StopScan"))
}

func (s *SessionTestSuite) TestStopScanFinishesOnce() {
	// GOAL: Verify stopping a running scan synthesizes one finish and ignores the late transport finish
	//
	// TEST SCENARIO: Scan without auto-finish → StopScan → Idle once → the fake's own ScanFinished is dropped

	s.transport.Configure(func(f *testutils.FakeTransport) { f.FinishScan = false })

	s.session.StartScan()
	s.waitFor(isStatus(session.StatusScanning))

	s.session.StopScan()
	s.session.StopScan()
	got := s.waitFor(isStatus(session.StatusScanComplete))
	got = append(got, s.settle()...)

	s.Equal([]session.State{session.Idle}, states(got), "MUST return to Idle exactly once")
	s.Equal(1, s.transport.CallCount("StopScan"))
	s.Equal(1, s.session.Registry().Len())
}

func (s *SessionTestSuite) TestScanGuardFinishesStuckScan() {
	s.transport.Configure(func(f *testutils.FakeTransport) { f.FinishScan = false })
	s.start(session.Options{ScanTimeout: 10 * time.Millisecond})

	s.session.StartScan()
	s.waitFor(isStatus(session.StatusScanComplete))
	s.Equal(session.Idle, s.session.State())
}

func (s *SessionTestSuite) TestConnectUnknownPeer() {
	err := s.session.Connect("00:00:00:00:00:00")

	s.ErrorIs(err, device.ErrUnknownPeer)
	s.sync()
	s.Zero(s.transport.CallCount("Connect"), "MUST NOT dial a peer the registry does not hold")
	s.Equal(session.Idle, s.session.State())
}

func (s *SessionTestSuite) TestConnectWhileScanningStopsScan() {
	s.transport.Configure(func(f *testutils.FakeTransport) { f.FinishScan = false })
	s.session.StartScan()
	s.waitFor(func(n session.Notification) bool { return n.Kind == session.DevicesUpdated && n.Count == 1 })

	got := s.connectReady(carAddress)

	s.Equal(1, s.transport.CallCount("StopScan"))
	s.Equal(session.Idle, states(got)[0], "scan MUST end before connecting")
	s.False(s.session.Snapshot().Scanning)
}

func (s *SessionTestSuite) TestConnectSameAddressIsNoop() {
	s.scan()
	s.connectReady(carAddress)

	s.Require().NoError(s.session.Connect(carAddress))
	s.sync()

	s.Empty(s.settle())
	s.Equal(1, s.transport.CallCount("Connect"))
	s.Equal(session.Ready, s.session.State())
}

func (s *SessionTestSuite) TestConnectDifferentAddressReplacesLink() {
	// GOAL: Verify switching peers tears the old link down exactly once before dialing the new one
	//
	// TEST SCENARIO: Ready with car → connect quad → one Disconnected → Connecting → Ready on quad

	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.Peers = []device.Peer{
			{Address: carAddress, Name: "rc-car", Connectable: true},
			{Address: quadAddress, Name: "quad", Connectable: true},
		}
	})
	s.scan()
	s.connectReady(carAddress)

	got := s.connectReady(quadAddress)

	s.Equal(1, count(got, session.Disconnected), "MUST announce the old link's end exactly once")
	disconnectAt, connectingAt := -1, -1
	for i, n := range got {
		if n.Kind == session.Disconnected && disconnectAt < 0 {
			disconnectAt = i
		}
		if n.Kind == session.StateChanged && n.State == session.Connecting && connectingAt < 0 {
			connectingAt = i
		}
	}
	s.Less(disconnectAt, connectingAt, "Disconnected MUST precede the fresh Connecting")
	s.Equal([]session.State{
		session.Idle,
		session.Connecting,
		session.ServiceDiscovery,
		session.CharacteristicDiscovery,
		session.Subscribing,
		session.Ready,
	}, states(got))
	s.Equal(quadAddress, s.session.Snapshot().Peer.Address)
	s.Equal(1, s.transport.CallCount("Disconnect"))
}

func (s *SessionTestSuite) TestDisconnectIsIdempotent() {
	s.scan()
	s.connectReady(carAddress)

	s.session.Disconnect()
	s.session.Disconnect()
	got := s.sync()
	got = append(got, s.settle()...)

	s.Equal(1, count(got, session.Disconnected), "two disconnects MUST produce one Disconnected")
	s.Equal([]session.State{session.Idle}, states(got))
	s.Equal(1, s.transport.CallCount("Disconnect"))

	s.Contains(got, session.Notification{Kind: session.StatusChanged, Status: session.StatusDisconnected})
	s.False(s.session.Snapshot().Ready)
	s.Empty(s.session.Catalog().Services(), "catalog MUST be empty in Idle")
	s.Empty(s.session.Catalog().Characteristics())
}

func (s *SessionTestSuite) TestDisconnectWhileIdleAnnouncesOnce() {
	s.session.Disconnect()
	s.session.Disconnect()
	got := s.sync()

	s.Equal(1, count(got, session.Disconnected))
	s.Empty(states(got))
	s.Zero(s.transport.CallCount("Disconnect"))
}

func (s *SessionTestSuite) TestDisconnectDuringServiceDiscovery() {
	s.transport.Configure(func(f *testutils.FakeTransport) { f.SilentServices = true })
	s.scan()

	s.Require().NoError(s.session.Connect(carAddress))
	s.waitFor(isState(session.ServiceDiscovery))

	s.session.Disconnect()
	got := s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })
	got = append(got, s.settle()...)

	s.Equal([]session.State{session.Idle}, states(got), "no transition MAY follow the teardown")
	s.Equal(1, count(got, session.Disconnected))
}

func (s *SessionTestSuite) TestMissingCharacteristicsFails() {
	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.Services = []device.ServiceInfo{{
			UUID: testutils.ControlServiceUUID,
			Characteristics: []device.CharacteristicInfo{
				{UUID: testutils.TxCharUUID, Operations: device.OpWrite},
			},
		}}
	})
	s.scan()

	s.Require().NoError(s.session.Connect(carAddress))
	got := s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })

	last := states(got)
	s.Equal(session.Idle, last[len(last)-1])
	s.NotContains(last, session.Subscribing)

	snap := s.session.Snapshot()
	s.Equal(session.StatusCharsMissing, snap.Status)
	s.ErrorIs(snap.LastErr, device.ErrMissingCapability)
	s.False(snap.Ready)
	s.Empty(s.session.Catalog().Characteristics())
}

func (s *SessionTestSuite) TestMissingServiceFails() {
	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.Services = []device.ServiceInfo{{UUID: "180f"}}
	})
	s.scan()

	s.Require().NoError(s.session.Connect(carAddress))
	s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })

	snap := s.session.Snapshot()
	s.Equal(session.Idle, snap.State)
	s.Equal(session.StatusServiceMissing, snap.Status)
	s.ErrorIs(snap.LastErr, device.ErrMissingCapability)
}

func (s *SessionTestSuite) TestCachedDetailsSkipDiscovery() {
	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.Cached = map[string]bool{testutils.ControlServiceUUID: true}
	})
	s.scan()

	s.connectReady(carAddress)

	s.Zero(s.transport.CallCount("DiscoverCharacteristics"),
		"details already known MUST be read synchronously")
}

func (s *SessionTestSuite) TestUncachedDetailsAreDiscovered() {
	s.scan()
	s.connectReady(carAddress)

	s.Equal(1, s.transport.CallCount("DiscoverCharacteristics"))
}

func (s *SessionTestSuite) TestInvalidDetailsFail() {
	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.DetailsState = device.ServiceInvalid
		f.DetailsErr = errors.New("attribute not found")
	})
	s.scan()

	s.Require().NoError(s.session.Connect(carAddress))
	s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })

	snap := s.session.Snapshot()
	s.Equal(session.Idle, snap.State)
	s.ErrorContains(snap.LastErr, "attribute not found")
}

func (s *SessionTestSuite) TestDescriptorWriteFailureFails() {
	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.DescriptorErr = errors.New("write not permitted")
	})
	s.scan()

	s.Require().NoError(s.session.Connect(carAddress))
	got := s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })

	s.Contains(states(got), session.Subscribing)
	s.NotContains(states(got), session.Ready)
	s.ErrorContains(s.session.LastError(), "write not permitted")
}

func (s *SessionTestSuite) TestConnectFailure() {
	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.ConnectFailure = errors.New("peer unreachable")
	})
	s.scan()

	s.Require().NoError(s.session.Connect(carAddress))
	got := s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })

	s.Equal([]session.State{session.Connecting, session.Idle}, states(got))
	s.ErrorIs(s.session.LastError(), device.ErrConnect)
}

func (s *SessionTestSuite) TestHandshakeTimeout() {
	s.transport.Configure(func(f *testutils.FakeTransport) { f.SilentConnect = true })
	s.start(session.Options{HandshakeTimeout: 20 * time.Millisecond})
	s.scan()

	s.Require().NoError(s.session.Connect(carAddress))
	s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })

	s.ErrorIs(s.session.LastError(), device.ErrTimeout)
	s.Equal(1, s.transport.CallCount("Disconnect"), "timed out attempt MUST release the transport")
}

func (s *SessionTestSuite) TestPeerDropWhileReady() {
	s.scan()
	s.connectReady(carAddress)

	dropErr := errors.New("supervision timeout")
	s.transport.Emit(device.Disconnected{Err: dropErr})
	got := s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })

	s.Equal(1, count(got, session.LinkReadyChanged))
	s.Equal([]session.State{session.Idle}, states(got))
	s.ErrorIs(s.session.LastError(), dropErr)
	s.False(s.session.Ready())
}

func (s *SessionTestSuite) TestConnectClearsLastError() {
	s.transport.Configure(func(f *testutils.FakeTransport) { f.ConnectFailure = errors.New("busy") })
	s.scan()
	s.Require().NoError(s.session.Connect(carAddress))
	s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })
	s.Error(s.session.LastError())

	s.transport.Configure(func(f *testutils.FakeTransport) { f.ConnectFailure = nil })
	s.connectReady(carAddress)

	s.NoError(s.session.LastError())
}

func (s *SessionTestSuite) TestReceivedDataIsPublished() {
	s.scan()
	s.connectReady(carAddress)

	s.transport.Emit(device.CharacteristicChanged{Characteristic: testutils.TxCharUUID, Data: []byte{0xFF}})
	s.transport.Emit(device.CharacteristicChanged{Characteristic: testutils.RxCharUUID, Data: []byte("OK\n")})
	got := s.waitFor(func(n session.Notification) bool { return n.Kind == session.DataReceived })

	s.Equal(1, count(got, session.DataReceived), "only the receive role MUST surface data")
	s.Equal([]byte("OK\n"), got[len(got)-1].Data)
}

func (s *SessionTestSuite) TestWriteFrame() {
	frame := []byte{0x72, 0x01, 0x00, 0x00}

	s.NoError(s.session.WriteFrame(frame, false), "streaming write MUST be dropped silently when not ready")
	s.ErrorIs(s.session.WriteFrame(frame, true), device.ErrNotConnected)
	s.Empty(s.transport.Writes())

	s.scan()
	s.connectReady(carAddress)

	s.NoError(s.session.WriteFrame(frame, false))
	s.NoError(s.session.WriteFrame([]byte{1, 100, 50, 30, 0}, true))

	writes := s.transport.Writes()
	s.Require().Len(writes, 2)
	s.Equal(testutils.TxCharUUID, writes[0].Characteristic)
	s.Equal(frame, writes[0].Data)
	s.Equal(device.WriteWithoutResponse, writes[0].Mode)
	s.Equal(device.WriteWithResponse, writes[1].Mode)

	s.transport.Configure(func(f *testutils.FakeTransport) { f.WriteErr = errors.New("gatt busy") })
	s.NoError(s.session.WriteFrame(frame, false))
	s.ErrorContains(s.session.WriteFrame(frame, true), "gatt busy")
}

func (s *SessionTestSuite) TestRandomAddressReachesTransport() {
	s.scan()

	s.True(s.session.SetRandomAddress(true))
	s.False(s.session.SetRandomAddress(true), "unchanged toggle MUST report no change")
	s.connectReady(carAddress)

	s.Contains(s.transport.Calls(), "Connect "+carAddress+" random=true")
}

func (s *SessionTestSuite) TestSelectService() {
	s.scan()
	s.connectReady(carAddress)

	s.session.SelectService(testutils.ControlServiceUUID)
	got := s.waitFor(isReady(true))
	s.Equal([]session.State{session.CharacteristicDiscovery, session.Subscribing, session.Ready}, states(got))

	s.session.SelectService("180f")
	s.waitFor(isStatus(session.StatusUnknownService))
	s.Equal(session.Ready, s.session.State())
}

func (s *SessionTestSuite) TestSelectServiceTimesOutWithoutDetails() {
	// GOAL: Verify re-selecting a service is bounded by the handshake timeout
	//
	// TEST SCENARIO: link ready, details forgotten, discovery never answers → timeout error, link released

	s.start(session.Options{HandshakeTimeout: 100 * time.Millisecond})
	s.scan()
	s.connectReady(carAddress)

	s.transport.Configure(func(f *testutils.FakeTransport) { f.SilentDetails = true })
	s.transport.ForgetDetails()
	s.session.SelectService(testutils.ControlServiceUUID)
	s.waitFor(func(n session.Notification) bool { return n.Kind == session.Disconnected })

	s.ErrorIs(s.session.LastError(), device.ErrTimeout)
	s.Equal(session.Idle, s.session.State())
	s.Equal(1, s.transport.CallCount("Disconnect"), "stalled discovery MUST release the transport")
}

func (s *SessionTestSuite) TestCloseReleasesLink() {
	s.scan()
	s.connectReady(carAddress)

	s.session.Close()

	s.Equal(1, s.transport.CallCount("Disconnect"))
	s.False(s.session.Ready())
	s.session = nil
}

func (s *SessionTestSuite) TestRandomOperationsKeepStateConsistent() {
	// GOAL: Verify arbitrary interleavings of commands, peer drops and streaming writes
	// leave the state machine consistent
	//
	// TEST SCENARIO: 1000 random operations while another goroutine writes frames →
	// every transition chains from the previous one → final disconnect leaves Idle with an empty catalog

	s.session.Close()
	s.session = nil
	bus := events.NewBus[session.Notification](1 << 16)
	s.start(session.Options{Bus: bus})

	s.transport.Configure(func(f *testutils.FakeTransport) {
		f.Peers = []device.Peer{
			{Address: carAddress, Name: "rc-car", Connectable: true},
			{Address: quadAddress, Name: "quad", Connectable: true},
		}
	})
	s.scan()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = s.session.WriteFrame([]byte{0, 0, 0, 0}, false)
			}
		}
	}()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		switch rng.Intn(6) {
		case 0:
			s.session.StartScan()
		case 1:
			s.session.StopScan()
		case 2:
			_ = s.session.Connect(carAddress)
		case 3:
			_ = s.session.Connect(quadAddress)
		case 4:
			s.session.Disconnect()
		case 5:
			s.transport.Emit(device.Disconnected{})
		}
	}
	s.session.Disconnect()
	got := s.sync()
	close(stop)
	wg.Wait()

	s.Zero(s.sub.Dropped(), "stress subscriber MUST NOT lose notifications")

	prev := session.Idle
	for _, n := range got {
		if n.Kind != session.StateChanged {
			continue
		}
		s.Equal(prev, n.Previous, "transition MUST start from the last published state")
		s.NotEqual(n.Previous, n.State, "MUST NOT publish a self transition")
		if n.State == session.Ready {
			s.Equal(session.Subscribing, n.Previous)
		}
		prev = n.State
	}

	s.Equal(session.Idle, s.session.State())
	s.False(s.session.Ready())
	s.Empty(s.session.Catalog().Services())
	s.Empty(s.session.Catalog().Characteristics())
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
