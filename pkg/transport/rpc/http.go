package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/plaenen/refactory/pkg/runner"
)

var _ runner.Service = (*HTTPService)(nil)

// HTTPService serves a Handler over HTTP under the runner.
type HTTPService struct {
	addr     string
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan error
}

// NewHTTPService creates a service listening on addr.
func NewHTTPService(addr string, handler *Handler, logger *slog.Logger) *HTTPService {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle(handler.Routes())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &HTTPService{
		addr: addr,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *HTTPService) Name() string {
	return "http"
}

// Start binds the listener and serves in the background.
func (s *HTTPService) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.done = make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	s.logger.Info("serving factory service", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the server down gracefully.
func (s *HTTPService) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}

// Addr returns the bound address, or "" before Start.
func (s *HTTPService) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
