// Package ctxinterrupt ties context cancellation to process interrupt signals.
package ctxinterrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// DefaultInterruptSignals are the signals that cancel a context returned by
// WithCancelOnInterrupt.
var DefaultInterruptSignals = []os.Signal{
	os.Interrupt,
	os.Kill,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// WithCancelOnInterrupt returns a context that is cancelled on the first
// interrupt signal. A second signal is left to the default handler, which
// terminates the process.
func WithCancelOnInterrupt(ctx context.Context) context.Context {
	return withSignals(ctx, DefaultInterruptSignals...)
}

func withSignals(ctx context.Context, sigs ...os.Signal) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
