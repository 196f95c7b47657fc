package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/session"
	"github.com/srg/rclink/pkg/config"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for connectable vehicles",
	Long: `Scan for Bluetooth Low Energy peripherals that accept connections and
list them in discovery order with their name, address, RSSI and advertised
services.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from configuration)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json); default from configuration")
}

func runScan(cmd *cobra.Command, _ []string) error {
	switch scanFormat {
	case "", "table", "json":
	default:
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	rt, err := newRuntime(cmd, func(c *config.Config) {
		if scanDuration > 0 {
			c.ScanTimeout = scanDuration
		}
		if scanFormat != "" {
			c.OutputFmt = scanFormat
		}
	})
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := interruptible(cmd.Context(), cmd.OutOrStdout(), "scan")
	defer cancel()

	rt.ctrl.Start(ctx)
	defer rt.ctrl.Close()

	progress := NewCountdownProgressPrinter(cmd.OutOrStdout(), "Scanning for BLE devices", session.StatusScanning,
		rt.cfg.ScanTimeout, session.StatusScanComplete, session.StatusNoPeers)
	progress.Start()
	defer progress.Stop()

	rt.ctrl.StartDeviceDiscovery()
	err = rt.awaitScan(ctx, nil, progress.Update)
	progress.Stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		rt.logger.WithError(err).Error("scan failed")
		return err
	}

	peers := rt.ctrl.Session().Registry().List()
	switch rt.cfg.OutputFmt {
	case "json":
		return displayPeersJSON(cmd.OutOrStdout(), peers)
	default:
		return displayPeersTable(cmd.OutOrStdout(), peers)
	}
}

func displayPeersTable(out io.Writer, peers []device.Peer) error {
	if len(peers) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSERVICES")
	fmt.Fprintln(w, strings.Repeat("-", 72))

	for _, p := range peers {
		name := p.DisplayName()
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := strings.Join(p.AdvertisedServices, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\n", name, p.Address, p.RSSI, services)
	}

	return w.Flush()
}

func displayPeersJSON(out io.Writer, peers []device.Peer) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(peers)
}
