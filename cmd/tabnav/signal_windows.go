//go:build windows

package main

import "context"

// dumpOnSignal is a no-op: Windows has no SIGUSR1.
func dumpOnSignal(ctx context.Context, _ string) {
	<-ctx.Done()
}
