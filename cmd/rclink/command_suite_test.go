package main

import (
	"bytes"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/devicefactory"
	"github.com/srg/rclink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// TestPeerAddress is the address of the fake transport's only peer.
const TestPeerAddress = "AA:BB:CC:DD:EE:01"

// CommandTestSuite runs commands against a scripted fake transport.
// All cmd/rclink test suites embed it.
type CommandTestSuite struct {
	suite.Suite
	Transport        *testutils.FakeTransport
	originalFactory  func(*logrus.Logger) (device.Transport, error)
	factoryInstalled bool
}

// SetupTest installs a fresh fake transport and resets every flag.
func (s *CommandTestSuite) SetupTest() {
	s.Transport = testutils.NewFakeTransport()
	if !s.factoryInstalled {
		s.originalFactory = devicefactory.TransportFactory
		s.factoryInstalled = true
	}
	devicefactory.TransportFactory = func(*logrus.Logger) (device.Transport, error) {
		return s.Transport, nil
	}
	resetFlags(rootCmd)
}

// TearDownSuite restores the real transport factory.
func (s *CommandTestSuite) TearDownSuite() {
	if s.factoryInstalled {
		devicefactory.TransportFactory = s.originalFactory
	}
}

// ExecuteCommand runs the root command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// AfterProgress strips the progress line output preceding the final result.
func AfterProgress(output string) string {
	if i := strings.LastIndex(output, clearLineSequence); i >= 0 {
		return output[i+len(clearLineSequence):]
	}
	return output
}

// resetFlags restores default values on cmd and all its subcommands so that
// Execute calls do not leak state into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
