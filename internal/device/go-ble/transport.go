package goble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/groutine"
)

// DefaultConnectTimeout applies when ConnectOptions carries no timeout.
const DefaultConnectTimeout = 10 * time.Second

// Transport drives a go-ble central. Every blocking go-ble call runs on its
// own named goroutine; outcomes are reported to the stream's EventSink.
type Transport struct {
	logger *logrus.Logger

	devMu sync.Mutex
	dev   ble.Device

	scanMu     sync.Mutex
	scanCancel context.CancelFunc

	connMu      sync.RWMutex
	status      device.LinkStatus
	client      ble.Client
	sink        device.EventSink
	connCancel  context.CancelFunc
	services    map[string]*ble.Service
	states      map[string]device.ServiceState
	details     map[string][]device.CharacteristicInfo
	chars       map[string]*ble.Characteristic
	writeMu     sync.Mutex
	closingByUs bool
}

var _ device.Transport = (*Transport)(nil)

// NewTransport creates a transport. The adapter is opened lazily on first use.
func NewTransport(logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{logger: logger}
}

func (t *Transport) adapter() (ble.Device, error) {
	t.devMu.Lock()
	defer t.devMu.Unlock()

	if t.dev != nil {
		return t.dev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		t.logger.WithError(err).Error("Failed to create BLE device")
		return nil, NormalizeError(err)
	}
	t.dev = dev
	return dev, nil
}

// StartScan begins discovery for at most timeout.
func (t *Transport) StartScan(timeout time.Duration, sink device.EventSink) error {
	dev, err := t.adapter()
	if err != nil {
		return err
	}

	t.scanMu.Lock()
	if t.scanCancel != nil {
		t.scanCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.scanCancel = cancel
	t.scanMu.Unlock()

	t.logger.WithField("timeout", timeout).Info("Scanning for BLE peers...")

	groutine.Go(ctx, "ble-scan", func(ctx context.Context) {
		defer cancel()

		err := dev.Scan(ctx, false, func(adv ble.Advertisement) {
			sink(device.PeerDiscovered{Peer: PeerFromAdvertisement(adv)})
		})
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			err = NormalizeError(err)
			t.logger.WithError(err).Error("Scan failed")
			sink(device.ScanFailed{Err: err})
			return
		}
		t.logger.Debug("Scan finished")
		sink(device.ScanFinished{})
	})
	return nil
}

// StopScan cancels the running scan; its ScanFinished follows asynchronously.
func (t *Transport) StopScan() {
	t.scanMu.Lock()
	cancel := t.scanCancel
	t.scanCancel = nil
	t.scanMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Connect dials peer. Connected or ConnectFailed follows on sink.
func (t *Transport) Connect(peer device.Peer, opts device.ConnectOptions, sink device.EventSink) error {
	dev, err := t.adapter()
	if err != nil {
		return err
	}

	t.connMu.Lock()
	if t.status != device.LinkUnconnected {
		t.connMu.Unlock()
		return device.ErrAlreadyConnected
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.status = device.LinkConnecting
	t.sink = sink
	t.connCancel = cancel
	t.closingByUs = false
	t.resetProfileLocked()
	t.connMu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"address":        peer.Address,
		"timeout":        timeout,
		"random_address": opts.RandomAddress,
	}).Info("Connecting to BLE device...")

	groutine.Go(ctx, "ble-dial", func(ctx context.Context) {
		dialCtx, dialCancel := context.WithTimeout(ctx, timeout)
		defer dialCancel()

		client, err := dev.Dial(dialCtx, dialAddr(peer.Address, opts.RandomAddress, t.logger))
		if err != nil {
			if ctx.Err() != nil {
				// Disconnect already reset the link.
				return
			}
			err = NormalizeError(err)
			t.logger.WithFields(logrus.Fields{
				"address": peer.Address,
				"error":   err,
			}).Error("Failed to dial BLE device")

			t.connMu.Lock()
			t.status = device.LinkUnconnected
			t.connCancel = nil
			t.connMu.Unlock()
			cancel()

			sink(device.ConnectFailed{Err: fmt.Errorf("failed to connect to device with address %q: %w", peer.Address, err)})
			return
		}

		t.connMu.Lock()
		if ctx.Err() != nil {
			t.connMu.Unlock()
			_ = client.CancelConnection()
			return
		}
		t.client = client
		t.status = device.LinkConnected
		t.connMu.Unlock()

		t.logger.WithField("address", peer.Address).Info("BLE device connected")
		sink(device.Connected{})
		t.monitor(ctx, client, sink)
	})
	return nil
}

// monitor reports a link drop the local side did not request.
func (t *Transport) monitor(ctx context.Context, client ble.Client, sink device.EventSink) {
	select {
	case <-client.Disconnected():
	case <-ctx.Done():
		return
	}

	t.connMu.Lock()
	byUs := t.closingByUs
	if t.client == client {
		t.client = nil
		t.status = device.LinkUnconnected
		t.resetProfileLocked()
	}
	t.connMu.Unlock()

	if !byUs {
		t.logger.Warn("BLE peer dropped the connection")
		sink(device.Disconnected{})
	}
}

// DiscoverServices lists the peer's primary services.
func (t *Transport) DiscoverServices() error {
	client, sink, err := t.connected()
	if err != nil {
		return err
	}

	groutine.Go(context.Background(), "ble-discover-services", func(ctx context.Context) {
		services, err := client.DiscoverServices(nil)
		if err != nil {
			sink(device.TransportFailed{Err: fmt.Errorf("failed to discover services: %w", NormalizeError(err))})
			return
		}

		t.connMu.Lock()
		if t.client != client {
			t.connMu.Unlock()
			return
		}
		t.status = device.LinkDiscovered
		for _, s := range services {
			key := device.NormalizeUUID(s.UUID.String())
			t.services[key] = s
			t.states[key] = device.ServiceRemote
		}
		t.connMu.Unlock()

		for _, s := range services {
			t.logger.WithField("service_uuid", s.UUID.String()).Debug("Found service UUID")
			sink(device.ServiceDiscovered{UUID: s.UUID.String()})
		}
		sink(device.ServiceDiscoveryFinished{})
	})
	return nil
}

// DiscoverCharacteristics discovers characteristics and their descriptors of service.
func (t *Transport) DiscoverCharacteristics(service string) error {
	key := device.NormalizeUUID(service)

	t.connMu.Lock()
	client, sink := t.client, t.sink
	svc, ok := t.services[key]
	if client == nil {
		t.connMu.Unlock()
		return device.ErrNotConnected
	}
	if !ok {
		t.connMu.Unlock()
		return &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}
	t.states[key] = device.ServiceDiscovering
	t.connMu.Unlock()

	groutine.Go(context.Background(), "ble-discover-characteristics", func(ctx context.Context) {
		chars, err := client.DiscoverCharacteristics(nil, svc)
		if err != nil {
			t.setServiceState(client, key, device.ServiceInvalid)
			sink(device.DetailsDiscovered{Service: service, State: device.ServiceInvalid, Err: NormalizeError(err)})
			return
		}

		infos := make([]device.CharacteristicInfo, 0, len(chars))
		for _, c := range chars {
			if _, derr := client.DiscoverDescriptors(nil, c); derr != nil {
				t.logger.WithFields(logrus.Fields{
					"char_uuid": c.UUID.String(),
					"error":     derr,
				}).Warn("Failed to discover descriptors")
			}
			infos = append(infos, CharacteristicInfo(c))
		}

		t.connMu.Lock()
		if t.client != client {
			t.connMu.Unlock()
			return
		}
		for _, c := range chars {
			t.chars[device.NormalizeUUID(c.UUID.String())] = c
		}
		t.details[key] = infos
		t.states[key] = device.ServiceDetailsDiscovered
		t.connMu.Unlock()

		t.logger.WithFields(logrus.Fields{
			"service_uuid":    service,
			"characteristics": len(infos),
		}).Debug("Service details discovered")
		sink(device.DetailsDiscovered{Service: service, State: device.ServiceDetailsDiscovered, Characteristics: infos})
	})
	return nil
}

func (t *Transport) setServiceState(client ble.Client, key string, state device.ServiceState) {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.client == client {
		t.states[key] = state
	}
}

func (t *Transport) ServiceState(service string) device.ServiceState {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	if t.states == nil {
		return device.ServiceInvalid
	}
	state, ok := t.states[device.NormalizeUUID(service)]
	if !ok {
		return device.ServiceInvalid
	}
	return state
}

func (t *Transport) Characteristics(service string) []device.CharacteristicInfo {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return append([]device.CharacteristicInfo(nil), t.details[device.NormalizeUUID(service)]...)
}

// WriteCharacteristic writes data synchronously. Writes are serialized, except
// that a write without response is dropped rather than queued behind an
// acknowledged write.
func (t *Transport) WriteCharacteristic(characteristic string, data []byte, mode device.WriteMode) error {
	client, c, err := t.characteristic(characteristic)
	if err != nil {
		return err
	}

	noRsp := mode == device.WriteWithoutResponse
	if noRsp {
		if !t.writeMu.TryLock() {
			t.logger.WithField("char_uuid", c.UUID.String()).Debug("Frame dropped, acknowledged write in flight")
			return nil
		}
	} else {
		t.writeMu.Lock()
	}
	defer t.writeMu.Unlock()
	return NormalizeError(client.WriteCharacteristic(c, data, noRsp))
}

// WriteDescriptor writes a descriptor. Writing the CCCD goes through go-ble's
// subscription API so that notifications are routed back as CharacteristicChanged.
func (t *Transport) WriteDescriptor(characteristic, descriptor string, data []byte) error {
	client, c, err := t.characteristic(characteristic)
	if err != nil {
		return err
	}
	sink := t.currentSink()

	groutine.Go(context.Background(), "ble-write-descriptor", func(ctx context.Context) {
		var werr error
		if device.SameUUID(descriptor, device.ClientCharacteristicConfigUUID) {
			werr = t.subscribe(client, c, data, sink)
		} else {
			werr = t.writeDescriptor(client, c, descriptor, data)
		}
		sink(device.DescriptorWritten{Characteristic: characteristic, Descriptor: descriptor, Err: werr})
	})
	return nil
}

func (t *Transport) subscribe(client ble.Client, c *ble.Characteristic, data []byte, sink device.EventSink) error {
	uuid := c.UUID.String()
	if bytes.Equal(data, []byte{0x00, 0x00}) {
		return NormalizeError(client.Unsubscribe(c, c.Property&ble.CharIndicate != 0 && c.Property&ble.CharNotify == 0))
	}

	indicate := len(data) > 0 && data[0]&0x02 != 0 && data[0]&0x01 == 0
	err := NormalizeError(client.Subscribe(c, indicate, func(value []byte) {
		sink(device.CharacteristicChanged{Characteristic: uuid, Data: append([]byte(nil), value...)})
	}))
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"char_uuid": uuid,
			"error":     err,
		}).Error("Failed to subscribe to characteristic notifications")
		return err
	}
	t.logger.WithField("char_uuid", uuid).Info("Subscribed to characteristic notifications")
	return nil
}

func (t *Transport) writeDescriptor(client ble.Client, c *ble.Characteristic, descriptor string, data []byte) error {
	for _, d := range c.Descriptors {
		if device.SameUUID(d.UUID.String(), descriptor) {
			return NormalizeError(client.WriteDescriptor(d, data))
		}
	}
	return &device.NotFoundError{Resource: "descriptor", UUIDs: []string{c.UUID.String(), descriptor}}
}

// Disconnect cancels the connection. A Disconnected event follows on the stream.
func (t *Transport) Disconnect() error {
	t.connMu.Lock()
	if t.status == device.LinkUnconnected {
		t.connMu.Unlock()
		t.logger.Debug("Disconnect called but already disconnected")
		return nil
	}
	client, cancel, sink := t.client, t.connCancel, t.sink
	t.status = device.LinkClosing
	t.closingByUs = true
	t.connMu.Unlock()

	t.logger.Info("Disconnecting BLE device...")
	if cancel != nil {
		cancel()
	}

	var err error
	if client != nil {
		err = NormalizeError(client.CancelConnection())
	}

	t.connMu.Lock()
	t.client = nil
	t.connCancel = nil
	t.status = device.LinkUnconnected
	t.resetProfileLocked()
	t.connMu.Unlock()

	if err != nil {
		t.logger.WithError(err).Warn("BLE device disconnected with errors")
	} else {
		t.logger.Info("BLE device disconnected successfully")
	}
	if sink != nil {
		sink(device.Disconnected{Err: err})
	}
	return err
}

func (t *Transport) ConnectionState() device.LinkStatus {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.status
}

func (t *Transport) connected() (ble.Client, device.EventSink, error) {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	if t.client == nil {
		return nil, nil, device.ErrNotConnected
	}
	return t.client, t.sink, nil
}

func (t *Transport) currentSink() device.EventSink {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.sink
}

func (t *Transport) characteristic(uuid string) (ble.Client, *ble.Characteristic, error) {
	t.connMu.RLock()
	defer t.connMu.RUnlock()

	if t.client == nil {
		return nil, nil, device.ErrNotConnected
	}
	c, ok := t.chars[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{uuid}}
	}
	return t.client, c, nil
}

func (t *Transport) resetProfileLocked() {
	t.services = make(map[string]*ble.Service)
	t.states = make(map[string]device.ServiceState)
	t.details = make(map[string][]device.CharacteristicInfo)
	t.chars = make(map[string]*ble.Characteristic)
}
