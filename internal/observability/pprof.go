package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
)

// NewDebugMux serves the pprof endpoints plus any extra handlers keyed by path, e.g. /metrics for the CLI.
func NewDebugMux(extra map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	for path, handler := range extra {
		if handler != nil {
			mux.Handle(path, handler)
		}
	}
	return mux
}

// StartDebugServer listens on addr in the background. An empty addr disables it and returns a nil server.
func StartDebugServer(addr string, handler http.Handler, logger *logging.Logger) *http.Server {
	if logger == nil {
		logger = logging.Default()
	}
	if addr == "" {
		logger.Info("debug server disabled", "reason", "empty addr")
		return nil
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("debug server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("debug server failed", "error", err)
		}
	}()

	return srv
}

func StopDebugServer(srv *http.Server, logger *logging.Logger, timeout time.Duration) error {
	if srv == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("debug server stopped")

	return nil
}
