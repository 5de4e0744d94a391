//go:build !unix

package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/tickloop/internal/scheduler"
)

// watchPauseSignals is a no-op where SIGUSR1/SIGUSR2 do not exist.
func watchPauseSignals(context.Context, *scheduler.Scheduler, *slog.Logger) func() {
	return func() {}
}
