package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals that stop a Runner.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// NotifyShutdown returns a context cancelled when a shutdown signal arrives.
func NotifyShutdown(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, ShutdownSignals...)
}
