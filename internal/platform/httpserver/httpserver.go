package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful shutdown of in-flight requests.
const ShutdownTimeout = 10 * time.Second

// New builds an HTTP server with the timeouts every listener in this project
// shares. Write timeout is left open so slow upstream bodies can stream.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Serve binds srv.Addr, serves until ctx is cancelled and then shuts down
// gracefully. A bind failure is returned immediately.
func Serve(ctx context.Context, srv *http.Server, name string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("bind %s %s: %w", name, srv.Addr, err)
	}
	return ServeListener(ctx, srv, ln, name, logger)
}

// ServeListener is Serve over an already bound listener.
func ServeListener(ctx context.Context, srv *http.Server, ln net.Listener, name string, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listener started", "name", name, "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s graceful shutdown: %w", name, err)
	}
	logger.Info("http listener stopped", "name", name)
	return nil
}
