package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/rclink/internal/controller"
	"github.com/srg/rclink/internal/session"
	"golang.org/x/term"
)

// driveCmd represents the drive command
var driveCmd = &cobra.Command{
	Use:   "drive <address>",
	Short: "Drive a vehicle from the keyboard",
	Long: `Connect to the vehicle at <address> and stream joystick frames while
translating key presses into stick positions.

Keys:
  w / s   left stick up / down (throttle)
  a / d   left stick left / right (yaw)
  i / k   right stick up / down (pitch)
  j / l   right stick left / right (roll, steering)
  space   center both sticks
  c       push vehicle configuration (car profile)
  q       quit`,
	Args: cobra.ExactArgs(1),
	RunE: runDrive,
}

const stickStep = 0.25

type keyAction int

const (
	keyIgnored keyAction = iota
	keyLeftStick
	keyRightStick
	keyCenter
	keySendConfig
	keyQuit
)

// sticks tracks the emulated stick positions in [-1, 1].
type sticks struct {
	lx, ly, rx, ry float64
}

func (s *sticks) apply(key byte) keyAction {
	switch key {
	case 'w':
		s.ly = nudge(s.ly, stickStep)
		return keyLeftStick
	case 's':
		s.ly = nudge(s.ly, -stickStep)
		return keyLeftStick
	case 'a':
		s.lx = nudge(s.lx, -stickStep)
		return keyLeftStick
	case 'd':
		s.lx = nudge(s.lx, stickStep)
		return keyLeftStick
	case 'i':
		s.ry = nudge(s.ry, stickStep)
		return keyRightStick
	case 'k':
		s.ry = nudge(s.ry, -stickStep)
		return keyRightStick
	case 'j':
		s.rx = nudge(s.rx, -stickStep)
		return keyRightStick
	case 'l':
		s.rx = nudge(s.rx, stickStep)
		return keyRightStick
	case ' ':
		*s = sticks{}
		return keyCenter
	case 'c':
		return keySendConfig
	case 'q', 0x03: // 0x03 is Ctrl+C in raw mode
		return keyQuit
	default:
		return keyIgnored
	}
}

func nudge(v, delta float64) float64 {
	return max(-1, min(1, v+delta))
}

func runDrive(cmd *cobra.Command, args []string) error {
	address := args[0]

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, cancel := interruptible(cmd.Context(), cmd.OutOrStdout(), "drive")
	defer cancel()

	rt.ctrl.Start(ctx)
	defer rt.ctrl.Close()

	out := cmd.OutOrStdout()
	progress := NewProgressPrinter(out, "Connecting to "+address, session.StatusSearch, session.StatusConnected)
	progress.Start()
	peer, err := rt.connect(ctx, address, progress.Update)
	progress.Stop()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s (%s), profile %s. Press q to quit.\n",
		peer.DisplayName(), peer.Address, rt.ctrl.Encoder().Profile().Name)

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw terminal mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	return driveLoop(ctx, rt.ctrl, readKeys(os.Stdin), out)
}

// readKeys forwards single bytes from r until it fails.
func readKeys(r io.Reader) <-chan byte {
	keys := make(chan byte)
	go func() {
		defer close(keys)
		buf := make([]byte, 1)
		for {
			if _, err := r.Read(buf); err != nil {
				return
			}
			keys <- buf[0]
		}
	}()
	return keys
}

// driveLoop applies keys to the sticks and prints status lines until quit,
// input ends, or the link drops.
func driveLoop(ctx context.Context, ctrl *controller.Controller, keys <-chan byte, out io.Writer) error {
	sub := ctrl.Subscribe()
	defer sub.Close()

	var st sticks
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case key, ok := <-keys:
			if !ok {
				return nil
			}
			switch st.apply(key) {
			case keyLeftStick:
				ctrl.LeftStickMoved(st.lx, st.ly)
			case keyRightStick:
				ctrl.RightStickMoved(st.rx, st.ry)
			case keyCenter:
				ctrl.LeftStickMoved(0, 0)
				ctrl.RightStickMoved(0, 0)
			case keySendConfig:
				ctrl.SendConfig()
			case keyQuit:
				ctrl.DisconnectFromDevice()
				return nil
			default:
				continue
			}
			rawPrintf(out, "sticks L(%+.2f,%+.2f) R(%+.2f,%+.2f)", st.lx, st.ly, st.rx, st.ry)

		case n := <-sub.C():
			switch n.Kind {
			case session.StatusChanged:
				statusColor(n.Status).Fprint(out, n.Status)
				rawPrintf(out, "")
			case session.Disconnected:
				if n.Err != nil {
					return fmt.Errorf("%w: %w", ErrConnectionLost, n.Err)
				}
				return ErrConnectionLost
			}
		}
	}
}

// rawPrintf ends lines with CRLF, which raw terminal mode requires.
func rawPrintf(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, format+"\r\n", args...)
}

func statusColor(status string) *color.Color {
	switch {
	case strings.HasPrefix(status, "Error:"),
		status == session.StatusDisconnected,
		status == session.StatusServiceMissing,
		status == session.StatusCharsMissing,
		status == session.StatusAdapterPoweredOff,
		status == session.StatusAdapterIO:
		return color.New(color.FgRed)
	case status == session.StatusConnected, status == controller.StatusConfigSent:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgYellow)
	}
}
