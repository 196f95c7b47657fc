package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/rclink/pkg/config"
)

// configureLogger creates a logger with the appropriate log level based on flags.
// --log-level takes precedence over --verbose, which takes precedence over the
// configured log_level. Returns an error if the log-level flag is invalid.
func configureLogger(cmd *cobra.Command, verboseFlagName string, cfg *config.Config) (*logrus.Logger, error) {
	logger := cfg.NewLogger()
	if cfg.LogLevel == "" {
		// Default to panic level (essentially silent for normal operations)
		logger.SetLevel(logrus.PanicLevel)
	}

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	verbose, _ := cmd.Flags().GetBool(verboseFlagName)
	switch {
	case logLevelStr != "":
		switch logLevelStr {
		case "debug":
			logger.SetLevel(logrus.DebugLevel)
		case "info":
			logger.SetLevel(logrus.InfoLevel)
		case "warn":
			logger.SetLevel(logrus.WarnLevel)
		case "error":
			logger.SetLevel(logrus.ErrorLevel)
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}
