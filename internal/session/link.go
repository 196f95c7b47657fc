package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/catalog"
	"github.com/srg/rclink/internal/device"
)

func (s *Session) connect(peer device.Peer) {
	if s.state == Scanning {
		s.stopScan()
	}

	if s.state.Linked() {
		if s.hasPeer && s.peer.Address == peer.Address {
			s.logger.WithFields(logrus.Fields{
				"address": peer.Address,
				"state":   s.state.String(),
			}).Debug("Already linked to peer, ignoring connect")
			return
		}
		s.teardown(nil)
	}

	s.clearCatalog()
	s.peer = peer
	s.hasPeer = true
	s.lastErr = nil
	s.announced = false
	s.publish(Notification{Kind: PeerChanged, Peer: peer})

	s.connEpoch++
	epoch := s.connEpoch
	s.setState(Connecting, nil)
	s.setStatus(StatusConnecting)

	s.logger.WithFields(logrus.Fields{
		"address":        peer.Address,
		"name":           peer.Name,
		"random_address": s.randomAddress.Load(),
	}).Info("Connecting to peer")

	opts := device.ConnectOptions{
		ConnectTimeout: s.opts.ConnectTimeout,
		RandomAddress:  s.randomAddress.Load(),
	}
	if err := s.transport.Connect(peer, opts, s.connSink(epoch)); err != nil {
		s.fail(fmt.Errorf("%w: %w", device.ErrConnect, err), "")
		return
	}
	s.startHandshakeTimer(epoch)
}

func (s *Session) disconnect() {
	if s.state.Linked() {
		s.teardown(nil)
		return
	}
	s.announceDisconnected()
}

// teardown releases the link and synthesizes its end. The transport's own
// Disconnected event, if any, belongs to the retired epoch and is dropped.
func (s *Session) teardown(err error) {
	if s.transport.ConnectionState() != device.LinkUnconnected {
		if derr := s.transport.Disconnect(); derr != nil {
			s.logger.WithError(derr).Debug("Transport disconnect failed")
		}
	}
	s.connEpoch++
	s.toIdle(err)
}

// fail ends the connection attempt with err. An empty status renders err.
func (s *Session) fail(err error, status string) {
	s.logger.WithFields(logrus.Fields{
		"state": s.state.String(),
		"error": err,
	}).Error("Link failed")

	if status == "" {
		status = StatusForError(err)
	}
	s.setStatus(status)
	s.teardown(err)
}

func (s *Session) toIdle(err error) {
	s.stopHandshakeTimer()
	s.setReady(false)
	s.clearCatalog()
	if err != nil {
		s.lastErr = err
	}
	s.setState(Idle, err)
	if err == nil {
		s.setStatus(StatusDisconnected)
	}
	s.announceDisconnected()
}

func (s *Session) announceDisconnected() {
	if s.announced {
		return
	}
	s.announced = true
	s.publish(Notification{Kind: Disconnected, Err: s.lastErr, Peer: s.peer})
}

func (s *Session) clearCatalog() {
	hadServices := len(s.catalog.Services()) > 0
	hadChars := len(s.catalog.Characteristics()) > 0
	s.catalog.Clear()
	s.service = ""
	s.pending = nil
	if hadServices {
		s.publish(Notification{Kind: ServicesUpdated})
	}
	if hadChars {
		s.publish(Notification{Kind: CharacteristicsUpdated})
	}
}

func (s *Session) startHandshakeTimer(epoch uint64) {
	s.stopHandshakeTimer()
	if s.opts.HandshakeTimeout <= 0 {
		return
	}
	s.handshakeEnd = time.AfterFunc(s.opts.HandshakeTimeout, func() {
		s.post(func() {
			if epoch == s.connEpoch && s.state.Linked() && s.state != Ready {
				s.fail(fmt.Errorf("%w: handshake did not complete within %s", device.ErrTimeout, s.opts.HandshakeTimeout), "")
			}
		})
	})
}

func (s *Session) stopHandshakeTimer() {
	if s.handshakeEnd != nil {
		s.handshakeEnd.Stop()
		s.handshakeEnd = nil
	}
}

func (s *Session) handleConnEvent(ev device.Event) {
	if !s.state.Linked() {
		return
	}

	switch e := ev.(type) {
	case device.Connected:
		s.onConnected()
	case device.ConnectFailed:
		s.fail(fmt.Errorf("%w: %w", device.ErrConnect, e.Err), "")
	case device.Disconnected:
		s.onDisconnected(e.Err)
	case device.ServiceDiscovered:
		s.onServiceDiscovered(e.UUID)
	case device.ServiceDiscoveryFinished:
		if s.state == ServiceDiscovery {
			s.fail(fmt.Errorf("%w: service %s not offered", device.ErrMissingCapability, s.opts.PrimaryService), StatusServiceMissing)
		}
	case device.DetailsDiscovered:
		s.onDetailsDiscovered(e)
	case device.DescriptorWritten:
		s.onDescriptorWritten(e)
	case device.CharacteristicChanged:
		s.onCharacteristicChanged(e)
	case device.TransportFailed:
		s.fail(e.Err, "")
	}
}

func (s *Session) onConnected() {
	if s.state != Connecting {
		return
	}
	s.logger.WithField("address", s.peer.Address).Info("Connected, discovering services")
	s.setState(ServiceDiscovery, nil)
	s.setStatus(StatusDiscoverServices)
	if err := s.transport.DiscoverServices(); err != nil {
		s.fail(err, "")
	}
}

func (s *Session) onDisconnected(err error) {
	s.logger.WithFields(logrus.Fields{
		"address": s.peer.Address,
		"error":   err,
	}).Info("Peer disconnected")

	s.connEpoch++
	if err != nil {
		s.setStatus(StatusForError(err))
	}
	s.toIdle(err)
}

func (s *Session) onServiceDiscovered(uuid string) {
	if s.state != ServiceDiscovery {
		return
	}
	if !device.SameUUID(uuid, s.opts.PrimaryService) {
		s.logger.WithField("service", uuid).Debug("Ignoring unrelated service")
		return
	}

	s.catalog.RecordService(device.ServiceInfo{UUID: uuid})
	s.publish(Notification{Kind: ServicesUpdated})
	s.discoverCharacteristics(uuid)
}

func (s *Session) selectService(uuid string) {
	if !s.state.CatalogValid() || s.state == ServiceDiscovery {
		s.setStatus(StatusUnknownService)
		return
	}
	svc, err := s.catalog.Service(uuid)
	if err != nil {
		s.logger.WithError(err).Warn("Service selection rejected")
		s.setStatus(StatusUnknownService)
		return
	}
	s.setReady(false)
	s.startHandshakeTimer(s.connEpoch)
	s.discoverCharacteristics(svc.UUID)
}

func (s *Session) discoverCharacteristics(uuid string) {
	s.service = uuid
	s.pending = nil
	if len(s.catalog.Characteristics()) > 0 {
		s.catalog.ClearCharacteristics()
		s.publish(Notification{Kind: CharacteristicsUpdated})
	}
	s.setState(CharacteristicDiscovery, nil)

	if s.transport.ServiceState(uuid) == device.ServiceDetailsDiscovered {
		s.onCharacteristics(s.transport.Characteristics(uuid))
		return
	}

	s.setStatus(StatusDiscoverDetails)
	if err := s.transport.DiscoverCharacteristics(uuid); err != nil {
		s.fail(err, "")
	}
}

func (s *Session) onDetailsDiscovered(e device.DetailsDiscovered) {
	if s.state != CharacteristicDiscovery || !device.SameUUID(e.Service, s.service) {
		return
	}

	switch e.State {
	case device.ServiceDiscovering:
	case device.ServiceDetailsDiscovered:
		s.onCharacteristics(e.Characteristics)
	default:
		err := e.Err
		if err == nil {
			err = errors.New("service details unavailable")
		}
		s.fail(fmt.Errorf("discover characteristics of %s: %w", device.ShortenUUID(e.Service), err), "")
	}
}

func (s *Session) onCharacteristics(chars []device.CharacteristicInfo) {
	selected, err := s.catalog.SelectRoles(chars)
	if err != nil {
		s.fail(err, StatusCharsMissing)
		return
	}

	s.catalog.RecordCharacteristics(selected)
	s.publish(Notification{Kind: CharacteristicsUpdated})
	s.subscribe()
}

func (s *Session) subscribe() {
	s.setState(Subscribing, nil)
	s.setStatus(StatusSubscribing)

	s.pending = map[string]bool{}
	for _, ch := range s.catalog.Characteristics() {
		if !ch.HasDescriptor(device.ClientCharacteristicConfigUUID) {
			continue
		}
		key := device.NormalizeUUID(ch.UUID)
		s.pending[key] = true
		if err := s.transport.WriteDescriptor(ch.UUID, device.ClientCharacteristicConfigUUID, device.EnableNotificationValue); err != nil {
			s.fail(fmt.Errorf("enable notifications on %s: %w", device.ShortenUUID(ch.UUID), err), "")
			return
		}
	}

	if len(s.pending) == 0 {
		s.becomeReady()
	}
}

func (s *Session) onDescriptorWritten(e device.DescriptorWritten) {
	if s.state != Subscribing {
		return
	}
	if e.Err != nil {
		s.fail(fmt.Errorf("enable notifications on %s: %w", device.ShortenUUID(e.Characteristic), e.Err), "")
		return
	}

	delete(s.pending, device.NormalizeUUID(e.Characteristic))
	if len(s.pending) == 0 {
		s.becomeReady()
	}
}

func (s *Session) becomeReady() {
	s.stopHandshakeTimer()
	s.pending = nil
	s.setState(Ready, nil)
	s.setStatus(StatusConnected)
	s.setReady(true)
	s.logger.WithFields(logrus.Fields{
		"address": s.peer.Address,
		"service": s.service,
	}).Info("Link ready")
}

func (s *Session) onCharacteristicChanged(e device.CharacteristicChanged) {
	if s.state != Subscribing && s.state != Ready {
		return
	}
	role, ok := s.catalog.Roles().RoleOf(e.Characteristic)
	if !ok || role != catalog.RoleReceive {
		return
	}
	data := append([]byte(nil), e.Data...)
	s.publish(Notification{Kind: DataReceived, Data: data})
}
