//go:build unix

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/tickloop/internal/scheduler"
)

// watchPauseSignals pauses the scheduler on SIGUSR1 and resumes it on
// SIGUSR2 until ctx is done. The returned func stops the watch.
func watchPauseSignals(ctx context.Context, s *scheduler.Scheduler, logger *slog.Logger) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		for {
			select {
			case sig := <-ch:
				if sig == syscall.SIGUSR1 {
					s.Pause()
					logger.Info("paused by signal", "clock", s.Now())
				} else {
					s.Resume()
					logger.Info("resumed by signal", "clock", s.Now())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { signal.Stop(ch) }
}
