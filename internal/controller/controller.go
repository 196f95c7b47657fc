// Package controller is the command surface a UI drives: fire-and-forget
// commands in, session notifications and state snapshots out.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/encoder"
	"github.com/srg/rclink/internal/events"
	"github.com/srg/rclink/internal/groutine"
	"github.com/srg/rclink/internal/scheduler"
	"github.com/srg/rclink/internal/session"
	"golang.org/x/time/rate"
)

// Status lines produced by configuration pushes.
const (
	StatusConfigSent        = "Configuration sent"
	StatusConfigThrottled   = "Configuration push throttled, try again shortly"
	StatusConfigUnsupported = "Configuration push is not supported by this vehicle profile"
	StatusConfigInvalid     = "Configuration is invalid"
)

var ErrConfigPushUnsupported = errors.New("configuration push unsupported")

// Options configures a Controller.
type Options struct {
	Profile         encoder.Profile
	Vehicle         encoder.VehicleConfig
	TxPeriod        time.Duration
	ConfigPushRate  rate.Limit
	ConfigPushBurst int
}

// State is a point-in-time view of everything a UI renders.
type State struct {
	LinkState       string                      `json:"link_state"`
	Status          string                      `json:"status"`
	Scanning        bool                        `json:"scanning"`
	LinkReady       bool                        `json:"link_ready"`
	RandomAddress   bool                        `json:"random_address"`
	Peer            *device.Peer                `json:"peer,omitempty"`
	Devices         []device.Peer               `json:"devices"`
	Services        []device.ServiceInfo        `json:"services"`
	Characteristics []device.CharacteristicInfo `json:"characteristics"`
	Profile         string                      `json:"profile"`
	Config          encoder.VehicleConfig       `json:"config"`
	LastError       string                      `json:"last_error,omitempty"`
}

// Controller binds a session, an encoder and a transmit scheduler together.
type Controller struct {
	session   *session.Session
	encoder   *encoder.Encoder
	scheduler *scheduler.Scheduler
	limiter   *rate.Limiter
	logger    *logrus.Logger

	wg sync.WaitGroup
}

// New creates a controller over sess. It does not start anything.
func New(sess *session.Session, opts Options, logger *logrus.Logger) (*Controller, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := opts.Vehicle.Validate(); err != nil {
		return nil, err
	}

	enc := encoder.New(opts.Profile, opts.Vehicle)
	sched, err := scheduler.New(enc, sess, opts.TxPeriod, logger)
	if err != nil {
		return nil, err
	}

	limit, burst := opts.ConfigPushRate, opts.ConfigPushBurst
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &Controller{
		session:   sess,
		encoder:   enc,
		scheduler: sched,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}, nil
}

// Start runs the session loop and the transmit scheduler.
func (c *Controller) Start(ctx context.Context) {
	c.session.Start(ctx)
	c.scheduler.Start(ctx)
}

// Close stops streaming, waits for pending configuration pushes and closes the session.
func (c *Controller) Close() {
	c.scheduler.Stop()
	c.wg.Wait()
	c.session.Close()
}

// Subscribe returns a notification subscription.
func (c *Controller) Subscribe() *events.Subscription[session.Notification] {
	return c.session.Subscribe()
}

// Session returns the underlying link session.
func (c *Controller) Session() *session.Session {
	return c.session
}

// Encoder returns the control encoder.
func (c *Controller) Encoder() *encoder.Encoder {
	return c.encoder
}

// Scheduler returns the transmit scheduler.
func (c *Controller) Scheduler() *scheduler.Scheduler {
	return c.scheduler
}

// State assembles a snapshot for rendering.
func (c *Controller) State() State {
	snap := c.session.Snapshot()
	st := State{
		LinkState:       snap.State.String(),
		Status:          snap.Status,
		Scanning:        snap.Scanning,
		LinkReady:       snap.Ready,
		RandomAddress:   c.session.RandomAddress(),
		Devices:         c.session.Registry().List(),
		Services:        c.session.Catalog().Services(),
		Characteristics: c.session.Catalog().Characteristics(),
		Profile:         c.encoder.Profile().Name,
		Config:          c.encoder.Config(),
	}
	if snap.HasPeer {
		peer := snap.Peer
		st.Peer = &peer
	}
	if snap.LastErr != nil {
		st.LastError = snap.LastErr.Error()
	}
	return st
}

func (c *Controller) StartDeviceDiscovery() {
	c.session.StartScan()
}

func (c *Controller) StopDeviceDiscovery() {
	c.session.StopScan()
}

// ScanServices connects to the peer at address and discovers its control service.
func (c *Controller) ScanServices(address string) {
	if err := c.session.Connect(address); err != nil {
		c.logger.WithError(err).Warn("Connect rejected")
		c.session.ReportStatus(session.StatusForError(err))
	}
}

// ConnectToService re-runs characteristic discovery for service uuid.
func (c *Controller) ConnectToService(uuid string) {
	c.session.SelectService(uuid)
}

func (c *Controller) DisconnectFromDevice() {
	c.session.Disconnect()
}

func (c *Controller) LeftStickMoved(x, y float64) {
	c.encoder.LeftStickMoved(x, y)
}

func (c *Controller) RightStickMoved(x, y float64) {
	c.encoder.RightStickMoved(x, y)
}

// SendConfig pushes the vehicle configuration with an acknowledged write.
// The outcome is reported through the status line.
func (c *Controller) SendConfig() {
	if !c.encoder.Profile().ConfigPush {
		c.logger.WithField("profile", c.encoder.Profile().Name).Warn("Configuration push not supported")
		c.session.ReportStatus(StatusConfigUnsupported)
		return
	}
	if !c.limiter.Allow() {
		c.logger.Debug("Configuration push throttled")
		c.session.ReportStatus(StatusConfigThrottled)
		return
	}

	frame, err := c.encoder.ConfigFrame()
	if err != nil {
		c.logger.WithError(err).Error("Cannot build configuration frame")
		c.session.ReportStatus(StatusConfigInvalid)
		return
	}

	groutine.GoTracked(context.Background(), &c.wg, "config-push", func(ctx context.Context) {
		c.session.ReportStatus(c.pushConfig(frame))
	})
}

// PushConfig pushes the configuration synchronously and returns the write outcome.
func (c *Controller) PushConfig(ctx context.Context) error {
	if !c.encoder.Profile().ConfigPush {
		return fmt.Errorf("%w: profile %s", ErrConfigPushUnsupported, c.encoder.Profile().Name)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	frame, err := c.encoder.ConfigFrame()
	if err != nil {
		return err
	}
	return c.session.WriteFrame(frame, true)
}

func (c *Controller) pushConfig(frame encoder.Frame) string {
	if err := c.session.WriteFrame(frame, true); err != nil {
		c.logger.WithError(err).Error("Configuration push failed")
		return session.StatusForError(err)
	}
	c.logger.WithField("frame", fmt.Sprintf("%x", []byte(frame))).Info("Configuration pushed")
	return StatusConfigSent
}

// SetRandomAddress selects random peer addressing for the next connect.
func (c *Controller) SetRandomAddress(v bool) {
	c.configChanged(c.session.SetRandomAddress(v))
}

func (c *Controller) SetInvertThrottle(v bool) {
	c.configChanged(c.encoder.SetInvertThrottle(v))
}

func (c *Controller) SetInvertSteering(v bool) {
	c.configChanged(c.encoder.SetInvertSteering(v))
}

func (c *Controller) SetSteeringPercentage(v uint8) {
	c.configChanged(c.encoder.SetSteeringPercentage(v))
}

func (c *Controller) SetThrottleFrontPercentage(v uint8) {
	c.configChanged(c.encoder.SetThrottleFrontPercentage(v))
}

func (c *Controller) SetThrottleBackPercentage(v uint8) {
	c.configChanged(c.encoder.SetThrottleBackPercentage(v))
}

func (c *Controller) configChanged(changed bool) {
	if changed {
		c.session.Bus().Publish(session.Notification{Kind: session.ConfigChanged})
	}
}
