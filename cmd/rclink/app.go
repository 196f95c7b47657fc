package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/rclink/internal/controller"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/devicefactory"
	"github.com/srg/rclink/internal/session"
	"github.com/srg/rclink/pkg/config"
	"golang.org/x/time/rate"
)

// pollInterval re-checks the session snapshot in case a notification was
// overwritten in a full subscription.
const pollInterval = 100 * time.Millisecond

// runtime is the wired application behind one command invocation.
type runtime struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctrl   *controller.Controller
}

// newRuntime loads configuration, applies flag overrides and wires the
// transport, session and controller. The controller is not started.
func newRuntime(cmd *cobra.Command, overrides ...func(*config.Config)) (*runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("profile") {
		cfg.Profile, _ = cmd.Flags().GetString("profile")
	}
	if cmd.Flags().Changed("random-address") {
		cfg.RandomAddress, _ = cmd.Flags().GetBool("random-address")
	}
	for _, apply := range overrides {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, "verbose", cfg)
	if err != nil {
		return nil, err
	}

	profile, err := cfg.VehicleProfile()
	if err != nil {
		return nil, err
	}

	transport, err := devicefactory.NewTransport(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE transport: %w", err)
	}

	sess := session.New(transport, session.Options{
		PrimaryService:   cfg.Service,
		Roles:            cfg.Roles(),
		ScanTimeout:      cfg.ScanTimeout,
		ConnectTimeout:   cfg.ConnectTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		RandomAddress:    cfg.RandomAddress,
	}, logger)

	ctrl, err := controller.New(sess, controller.Options{
		Profile:         profile,
		Vehicle:         cfg.Vehicle,
		TxPeriod:        cfg.TxPeriod,
		ConfigPushRate:  rate.Limit(cfg.ConfigPushRate),
		ConfigPushBurst: cfg.ConfigPushBurst,
	}, logger)
	if err != nil {
		sess.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"profile":   profile.Name,
		"service":   cfg.Service,
		"tx_period": cfg.TxPeriod,
	}).Debug("Runtime configured")

	return &runtime{cfg: cfg, logger: logger, ctrl: ctrl}, nil
}

// findPeer looks address up in the registry ignoring case.
func (rt *runtime) findPeer(address string) (device.Peer, bool) {
	for _, p := range rt.ctrl.Session().Registry().List() {
		if strings.EqualFold(p.Address, address) {
			return p, true
		}
	}
	return device.Peer{}, false
}

// scanOutcome reports whether a scan run is over, and its error if it failed.
func scanOutcome(snap session.Snapshot) (bool, error) {
	if snap.LastErr != nil {
		return true, snap.LastErr
	}
	switch snap.Status {
	case session.StatusScanComplete, session.StatusNoPeers:
		return true, nil
	}
	return false, nil
}

// awaitScan blocks until the running scan ends or until found reports true.
// progress receives every status line; it may be nil.
func (rt *runtime) awaitScan(ctx context.Context, found func() bool, progress func(string)) error {
	sub := rt.ctrl.Subscribe()
	defer sub.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if found != nil && found() {
			return nil
		}
		snap := rt.ctrl.Session().Snapshot()
		if progress != nil {
			progress(snap.Status)
		}
		if done, err := scanOutcome(snap); done {
			return err
		}

		select {
		case <-ctx.Done():
			rt.ctrl.StopDeviceDiscovery()
			return ctx.Err()
		case <-sub.C():
		case <-ticker.C:
		}
	}
}

// connect finds address (scanning when needed) and waits until the link is Ready.
func (rt *runtime) connect(ctx context.Context, address string, progress func(string)) (device.Peer, error) {
	peer, ok := rt.findPeer(address)
	if !ok {
		rt.ctrl.StartDeviceDiscovery()
		err := rt.awaitScan(ctx, func() bool {
			peer, ok = rt.findPeer(address)
			return ok
		}, progress)
		if err != nil {
			return device.Peer{}, err
		}
		if !ok {
			return device.Peer{}, fmt.Errorf("%w: %s", ErrPeerNotFound, address)
		}
	}

	sub := rt.ctrl.Subscribe()
	defer sub.Close()

	if err := rt.ctrl.Session().Connect(peer.Address); err != nil {
		return device.Peer{}, err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	linked := false
	for {
		snap := rt.ctrl.Session().Snapshot()
		if progress != nil {
			progress(snap.Status)
		}
		if snap.Ready {
			return peer, nil
		}
		if snap.State.Linked() {
			linked = true
		}
		if snap.State == session.Idle && (linked || snap.LastErr != nil) {
			if snap.LastErr != nil {
				return device.Peer{}, snap.LastErr
			}
			return device.Peer{}, fmt.Errorf("%w: %s", ErrConnectionLost, snap.Status)
		}

		select {
		case <-ctx.Done():
			rt.ctrl.DisconnectFromDevice()
			return device.Peer{}, ctx.Err()
		case n := <-sub.C():
			if n.Kind == session.StateChanged && n.State.Linked() {
				linked = true
			}
		case <-ticker.C:
		}
	}
}

// interruptible returns a context canceled on Ctrl+C or SIGTERM.
func interruptible(parent context.Context, out io.Writer, what string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := notifyInterrupt(func() {
		fmt.Fprintf(out, "\nCtrl+C pressed, cancelling %s...\n", what)
		cancel()
	})
	return ctx, func() {
		stop()
		cancel()
	}
}
