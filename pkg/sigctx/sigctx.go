package sigctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var shutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// NotifyContext returns a context done on the first shutdown signal.
func NotifyContext() (context.Context, context.CancelFunc) {
	return WithParent(context.Background())
}

// WithParent is [NotifyContext] derived from parent.
func WithParent(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
