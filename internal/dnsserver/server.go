package dnsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server runs a Handler over UDP and TCP on the same address.
type Server struct {
	addr    string
	handler dns.Handler
	logger  *slog.Logger
	started chan struct{}
}

func NewServer(addr string, handler dns.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, handler: handler, logger: logger, started: make(chan struct{})}
}

// Started is closed once both listeners accept queries.
func (s *Server) Started() <-chan struct{} {
	return s.started
}

// Run binds both sockets and serves until ctx is cancelled. Bind failures are
// returned before anything is served.
func (s *Server) Run(ctx context.Context) error {
	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("bind dns udp %s: %w", s.addr, err)
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("bind dns tcp %s: %w", s.addr, err)
	}

	udpUp, tcpUp := make(chan struct{}), make(chan struct{})
	servers := []*dns.Server{
		{PacketConn: pc, Handler: s.handler, NotifyStartedFunc: func() { close(udpUp) }},
		{Listener: ln, Handler: s.handler, NotifyStartedFunc: func() { close(tcpUp) }},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			err := srv.ActivateAndServe()
			if err != nil && gctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("dns server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer shutdown(servers, s.logger)
		for _, up := range []chan struct{}{udpUp, tcpUp} {
			select {
			case <-up:
			case <-gctx.Done():
				return nil
			}
		}
		close(s.started)
		s.logger.Info("dns server listening", "addr", s.addr)
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

func shutdown(servers []*dns.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.ShutdownContext(ctx); err != nil {
			logger.Debug("dns shutdown", "error", err)
		}
		// A server that never started still owns its socket.
		if srv.PacketConn != nil {
			_ = srv.PacketConn.Close()
		}
		if srv.Listener != nil {
			_ = srv.Listener.Close()
		}
	}
}
