//go:build !windows

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// dumpOnSignal writes the log ring buffer on SIGUSR1 until ctx ends.
func dumpOnSignal(ctx context.Context, dir string) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			path, err := writeCrashDump(dir)
			if err != nil {
				cliLog.Error("crash_dump_failed", slog.String("error", err.Error()))
				continue
			}
			cliLog.Info("crash_dump_written", slog.String("path", path))
		}
	}
}
