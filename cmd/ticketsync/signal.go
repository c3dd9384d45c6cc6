package main

import (
	"context"
	"os/signal"
	"syscall"
)

// signalContext cancels on SIGINT or SIGTERM. Pools still finalize after
// cancellation, so an interrupted run leaves no claim in progress.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
