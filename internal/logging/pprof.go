package logging

import (
	"log/slog"
	"net/http"
	_ "net/http/pprof"
)

func startPprof(addr string) {
	go func() {
		Logger().Info("pprof_listen", slog.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			Logger().Warn("pprof_stopped", slog.String("error", err.Error()))
		}
	}()
}
