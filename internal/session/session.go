// Package session drives a single BLE control link from scan to streaming.
//
// All link state lives on one event-loop goroutine. Commands and transport
// events are posted to its mailbox and handled strictly in arrival order, so
// state transitions never interleave. The transmit path (WriteFrame) is the
// only operation that bypasses the loop; it reads an atomic ready flag and
// the catalog's lock-free index.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/catalog"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/events"
	"github.com/srg/rclink/internal/groutine"
	"github.com/srg/rclink/internal/registry"
)

// Options configures a Session.
type Options struct {
	// PrimaryService is the UUID of the control service the handshake looks for.
	PrimaryService string
	// Roles maps the receive and transmit characteristic UUIDs.
	Roles catalog.Roles
	// ScanTimeout bounds a discovery run.
	ScanTimeout time.Duration
	// ConnectTimeout is handed to the transport for the dial.
	ConnectTimeout time.Duration
	// HandshakeTimeout bounds Connecting through Subscribing. Zero disables it.
	HandshakeTimeout time.Duration
	// RandomAddress selects random peer addressing for new connections.
	RandomAddress bool
	// Bus receives notifications. A private bus is created when nil.
	Bus *events.Bus[Notification]
}

// scanGrace caps how long the session waits past ScanTimeout for the
// transport to report the end of a scan before finishing it itself.
const scanGrace = 2 * time.Second

// Session is the link state machine.
type Session struct {
	transport device.Transport
	registry  *registry.Registry
	catalog   *catalog.Catalog
	bus       *events.Bus[Notification]
	ownsBus   bool
	logger    *logrus.Logger
	opts      Options

	randomAddress atomic.Bool
	ready         atomic.Bool
	snapshot      atomic.Pointer[Snapshot]

	mailboxMu sync.Mutex
	mailbox   []func()
	wake      chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	// Loop-owned state.
	state        State
	status       string
	scanning     bool
	lastErr      error
	peer         device.Peer
	hasPeer      bool
	service      string
	pending      map[string]bool
	scanEpoch    uint64
	connEpoch    uint64
	announced    bool
	handshakeEnd *time.Timer
}

// New creates a session bound to transport. Call Start before issuing commands.
func New(transport device.Transport, opts Options, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Session{
		transport: transport,
		catalog:   catalog.New(opts.Roles),
		bus:       opts.Bus,
		logger:    logger,
		opts:      opts,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		status:    StatusSearch,
	}
	if s.bus == nil {
		s.bus = events.NewBus[Notification](events.DefaultSubscriberCapacity)
		s.ownsBus = true
	}
	s.registry = registry.New(logger, func(count int) {
		s.publish(Notification{Kind: DevicesUpdated, Count: count})
	})
	s.randomAddress.Store(opts.RandomAddress)
	s.storeSnapshot()
	return s
}

// Start launches the event loop. It is a no-op after the first call.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		groutine.Go(ctx, "link-session", s.run)
	})
}

// Close stops the loop, releasing any live link, and waits for it to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel == nil {
			close(s.done)
		} else {
			s.cancel()
		}
		<-s.done
		if s.ownsBus {
			s.bus.Close()
		}
	})
}

// Subscribe returns a new notification subscription.
func (s *Session) Subscribe() *events.Subscription[Notification] {
	return s.bus.Subscribe()
}

// Bus returns the notification bus.
func (s *Session) Bus() *events.Bus[Notification] {
	return s.bus
}

// Registry returns the peer registry filled by scans.
func (s *Session) Registry() *registry.Registry {
	return s.registry
}

// Catalog returns the capability catalog of the active peer.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Snapshot returns the last published state of the session.
func (s *Session) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// State returns the current link state.
func (s *Session) State() State {
	return s.snapshot.Load().State
}

// Ready reports whether frames can be streamed.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// LastError returns the error of the most recent failed operation, cleared by a new connect.
func (s *Session) LastError() error {
	return s.snapshot.Load().LastErr
}

// SetRandomAddress toggles random addressing for subsequent connects.
func (s *Session) SetRandomAddress(v bool) bool {
	return s.randomAddress.Swap(v) != v
}

// RandomAddress reports the addressing mode used for the next connect.
func (s *Session) RandomAddress() bool {
	return s.randomAddress.Load()
}

// StartScan clears the registry and starts discovery. Ignored unless Idle.
func (s *Session) StartScan() {
	s.post(s.startScan)
}

// StopScan ends a running scan. Ignored when not scanning.
func (s *Session) StopScan() {
	s.post(s.stopScan)
}

// Connect begins a handshake with the registry peer at address.
// An address the registry does not hold fails with ErrUnknownPeer.
func (s *Session) Connect(address string) error {
	peer, ok := s.registry.Find(address)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrUnknownPeer, address)
	}
	s.post(func() { s.connect(peer) })
	return nil
}

// SelectService re-runs characteristic discovery for an already discovered service.
func (s *Session) SelectService(uuid string) {
	s.post(func() { s.selectService(uuid) })
}

// Disconnect tears down the link. It always ends with exactly one
// Disconnected notification and is idempotent.
func (s *Session) Disconnect() {
	s.post(s.disconnect)
}

// ReportStatus replaces the status line.
func (s *Session) ReportStatus(msg string) {
	s.post(func() { s.setStatus(msg) })
}

// WriteFrame sends frame on the transmit characteristic.
//
// Streaming writes (needsResponse false) are best effort: when the link is not
// ready or the write fails, the frame is dropped and nil is returned.
// Acknowledged writes report every failure to the caller.
func (s *Session) WriteFrame(frame []byte, needsResponse bool) error {
	if !s.ready.Load() {
		if needsResponse {
			return device.ErrNotConnected
		}
		return nil
	}

	tx, ok := s.catalog.CharacteristicByRole(catalog.RoleTransmit)
	if !ok {
		return nil
	}

	mode := device.WriteWithoutResponse
	if needsResponse {
		mode = device.WriteWithResponse
	}

	if err := s.transport.WriteCharacteristic(tx.UUID, frame, mode); err != nil {
		if needsResponse {
			return fmt.Errorf("write %s: %w", device.ShortenUUID(tx.UUID), err)
		}
		s.logger.WithFields(logrus.Fields{
			"characteristic": tx.UUID,
			"error":          err,
		}).Debug("Dropped frame")
	}
	return nil
}

func (s *Session) post(fn func()) {
	s.mailboxMu.Lock()
	s.mailbox = append(s.mailbox, fn)
	s.mailboxMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) next() func() {
	s.mailboxMu.Lock()
	defer s.mailboxMu.Unlock()

	if len(s.mailbox) == 0 {
		return nil
	}
	fn := s.mailbox[0]
	s.mailbox[0] = nil
	s.mailbox = s.mailbox[1:]
	return fn
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	s.logger.Debug("Link session started")

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.wake:
			for fn := s.next(); fn != nil; fn = s.next() {
				fn()
				if ctx.Err() != nil {
					break
				}
			}
		}
	}
}

func (s *Session) shutdown() {
	s.stopHandshakeTimer()
	if s.state == Scanning {
		s.transport.StopScan()
	}
	if s.state.Linked() {
		if err := s.transport.Disconnect(); err != nil {
			s.logger.WithError(err).Debug("Disconnect on shutdown failed")
		}
	}
	s.ready.Store(false)
	s.logger.Debug("Link session stopped")
}

func (s *Session) publish(n Notification) {
	s.storeSnapshot()
	s.bus.Publish(n)
}

func (s *Session) storeSnapshot() {
	s.snapshot.Store(&Snapshot{
		State:    s.state,
		Status:   s.status,
		Scanning: s.scanning,
		Ready:    s.ready.Load(),
		Peer:     s.peer,
		HasPeer:  s.hasPeer,
		LastErr:  s.lastErr,
	})
}

func (s *Session) setState(next State, err error) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	s.logger.WithFields(logrus.Fields{
		"from": prev.String(),
		"to":   next.String(),
	}).Debug("Link state changed")
	s.publish(Notification{Kind: StateChanged, State: next, Previous: prev, Err: err})
}

func (s *Session) setStatus(msg string) {
	if msg == "" || s.status == msg {
		return
	}
	s.status = msg
	s.publish(Notification{Kind: StatusChanged, Status: msg})
}

func (s *Session) setScanning(v bool) {
	if s.scanning == v {
		return
	}
	s.scanning = v
	s.publish(Notification{Kind: ScanStateChanged, Scanning: v})
}

func (s *Session) setReady(v bool) {
	if s.ready.Swap(v) == v {
		return
	}
	s.publish(Notification{Kind: LinkReadyChanged, Ready: v})
}

// scanSink and connSink stamp transport events with the stream they belong
// to. Events from a superseded stream are dropped inside the loop.
func (s *Session) scanSink(epoch uint64) device.EventSink {
	return func(ev device.Event) {
		s.post(func() {
			if epoch != s.scanEpoch {
				s.logger.WithField("event", fmt.Sprintf("%T", ev)).Debug("Dropped stale scan event")
				return
			}
			s.handleScanEvent(ev)
		})
	}
}

func (s *Session) connSink(epoch uint64) device.EventSink {
	return func(ev device.Event) {
		s.post(func() {
			if epoch != s.connEpoch {
				s.logger.WithField("event", fmt.Sprintf("%T", ev)).Debug("Dropped stale connection event")
				return
			}
			s.handleConnEvent(ev)
		})
	}
}
