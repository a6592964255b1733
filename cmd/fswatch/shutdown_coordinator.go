package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"fswatch/internal/logging"
)

type shutdownPhase struct {
	name    string
	timeout time.Duration
	stop    func(context.Context) error
}

// shutdownCoordinator runs registered phases once, in registration order.
// A failing phase does not prevent the later ones from running.
type shutdownCoordinator struct {
	logger *logging.Logger
	once   sync.Once
	mu     sync.Mutex
	phases []shutdownPhase
}

func newShutdownCoordinator(logger *logging.Logger) *shutdownCoordinator {
	return &shutdownCoordinator{
		logger: logger,
	}
}

// Add registers a phase. A positive timeout bounds the phase on top of the
// context passed to Run.
func (coordinator *shutdownCoordinator) Add(name string, timeout time.Duration, stop func(context.Context) error) {
	if coordinator == nil || stop == nil {
		return
	}
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	coordinator.phases = append(coordinator.phases, shutdownPhase{
		name:    name,
		timeout: timeout,
		stop:    stop,
	})
}

func (coordinator *shutdownCoordinator) Run(ctx context.Context) error {
	if coordinator == nil {
		return nil
	}
	var runErr error
	coordinator.once.Do(func() {
		coordinator.mu.Lock()
		phases := append([]shutdownPhase(nil), coordinator.phases...)
		coordinator.mu.Unlock()

		for _, phase := range phases {
			if err := coordinator.runPhase(ctx, phase); err != nil {
				runErr = errors.Join(runErr, err)
			}
		}
	})
	return runErr
}

func (coordinator *shutdownCoordinator) runPhase(ctx context.Context, phase shutdownPhase) error {
	phaseCtx := ctx
	if phase.timeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, phase.timeout)
		defer cancel()
	}

	started := time.Now()
	coordinator.logger.Debug("shutdown phase starting", map[string]string{
		"phase": phase.name,
	})
	err := phase.stop(phaseCtx)
	fields := map[string]string{
		"phase":    phase.name,
		"duration": time.Since(started).Round(time.Millisecond).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		coordinator.logger.Warn("shutdown phase failed", fields)
		return err
	}
	coordinator.logger.Info("shutdown phase finished", fields)
	return nil
}
