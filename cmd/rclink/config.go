package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/rclink/internal/controller"
	"github.com/srg/rclink/internal/session"
	"gopkg.in/yaml.v3"
)

// configCmd groups configuration subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or push the vehicle configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the --config file and flag
overrides have been applied. Table output prints YAML; json prints JSON.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configPushCmd = &cobra.Command{
	Use:   "push <address>",
	Short: "Send the vehicle configuration to a car",
	Long: `Connect to the vehicle at <address> and write the configured inversion
and percentage limits with an acknowledged write. Only the car profile
accepts configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigPush,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "", "Output format (table, json); default from configuration")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPushCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	switch configFormat {
	case "", "table", "json":
	default:
		return fmt.Errorf("invalid format '%s': must be one of [table json]", configFormat)
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.ctrl.Close()
	cmd.SilenceUsage = true

	format := rt.cfg.OutputFmt
	if configFormat != "" {
		format = configFormat
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rt.cfg)
	}

	data, err := yaml.Marshal(rt.cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigPush(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if !rt.ctrl.Encoder().Profile().ConfigPush {
		rt.ctrl.Close()
		return fmt.Errorf("%w: profile %s", controller.ErrConfigPushUnsupported, rt.ctrl.Encoder().Profile().Name)
	}

	ctx, cancel := interruptible(cmd.Context(), cmd.OutOrStdout(), "configuration push")
	defer cancel()

	rt.ctrl.Start(ctx)
	defer rt.ctrl.Close()

	out := cmd.OutOrStdout()
	progress := NewProgressPrinter(out, "Connecting to "+args[0], session.StatusSearch, session.StatusConnected)
	progress.Start()
	peer, err := rt.connect(ctx, args[0], progress.Update)
	progress.Stop()
	if err != nil {
		return err
	}

	if err := rt.ctrl.PushConfig(ctx); err != nil {
		return fmt.Errorf("failed to push configuration to %s: %w", peer.Address, err)
	}
	rt.logger.WithField("address", peer.Address).Info("Configuration pushed")
	fmt.Fprintf(out, "%s to %s\n", controller.StatusConfigSent, peer.Address)

	rt.ctrl.DisconnectFromDevice()
	return nil
}
