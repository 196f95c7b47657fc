package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyInterrupt calls fn once on the first SIGINT or SIGTERM.
// The returned function releases the signal handler.
func notifyInterrupt(fn func()) func() {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fn()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
