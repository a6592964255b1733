package main

import (
	"context"
	"os"
	"sync/atomic"

	"fswatch/internal/logging"
)

// watchShutdownSignals cancels the daemon on the first signal and calls
// force on the second, so a stuck shutdown can still be interrupted.
func watchShutdownSignals(logger *logging.Logger, shutdownCancel context.CancelFunc, force func(), signalCh <-chan os.Signal) func() {
	if signalCh == nil {
		return func() {}
	}

	done := make(chan struct{})
	var received atomic.Int32

	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signalCh:
				if !ok {
					return
				}
				fields := map[string]string{}
				if sig != nil {
					fields["signal"] = sig.String()
				}
				switch received.Add(1) {
				case 1:
					logger.Info("shutdown signal received", fields)
					if shutdownCancel != nil {
						shutdownCancel()
					}
				case 2:
					logger.Warn("second signal received; forcing exit", fields)
					if force != nil {
						force()
					}
				}
			}
		}
	}()

	return func() {
		close(done)
	}
}
