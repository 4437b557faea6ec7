package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// StartServer binds port and serves /metrics in the background. Each mount
// func may add routes, such as health probes for daemons without an API
// port. A bind failure is returned rather than logged later.
func StartServer(port int, mounts ...func(mux *http.ServeMux)) (shutdown func(context.Context) error, err error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	for _, mount := range mounts {
		mount(mux)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding metrics port %d: %w", port, err)
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	go func() {
		slog.Info("metrics server listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	return server.Shutdown, nil
}
