package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer wraps an in-process NATS server with JetStream enabled.
type EmbeddedServer struct {
	server *server.Server
	url    string
}

type embeddedConfig struct {
	host         string
	port         int
	storeDir     string
	readyTimeout time.Duration
}

// EmbeddedOption configures StartEmbeddedServer.
type EmbeddedOption func(*embeddedConfig)

// WithHost sets the listen host (default 127.0.0.1).
func WithHost(host string) EmbeddedOption {
	return func(c *embeddedConfig) { c.host = host }
}

// WithPort sets the client port. -1 picks a random port.
func WithPort(port int) EmbeddedOption {
	return func(c *embeddedConfig) { c.port = port }
}

// WithStoreDir sets the JetStream storage directory. Empty uses a temp directory.
func WithStoreDir(dir string) EmbeddedOption {
	return func(c *embeddedConfig) { c.storeDir = dir }
}

// WithReadyTimeout bounds how long startup may take.
func WithReadyTimeout(d time.Duration) EmbeddedOption {
	return func(c *embeddedConfig) { c.readyTimeout = d }
}

// StartEmbeddedServer starts a NATS server with JetStream enabled.
func StartEmbeddedServer(opts ...EmbeddedOption) (*EmbeddedServer, error) {
	config := embeddedConfig{
		host:         "127.0.0.1",
		port:         -1,
		readyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}

	s, err := server.NewServer(&server.Options{
		Host:      config.host,
		Port:      config.port,
		JetStream: true,
		StoreDir:  config.storeDir,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded server: %w", err)
	}

	go s.Start()

	if !s.ReadyForConnections(config.readyTimeout) {
		s.Shutdown()
		return nil, fmt.Errorf("embedded server not ready after %s", config.readyTimeout)
	}

	return &EmbeddedServer{server: s, url: s.ClientURL()}, nil
}

// URL returns the client URL.
func (e *EmbeddedServer) URL() string {
	return e.url
}

// Shutdown stops the server and waits for it to exit.
func (e *EmbeddedServer) Shutdown() {
	if e.server != nil {
		e.server.Shutdown()
		e.server.WaitForShutdown()
	}
}

// NewEmbeddedEventBus starts an embedded server and connects an event bus
// to it with TestConfig.
func NewEmbeddedEventBus(opts ...EmbeddedOption) (*EventBus, *EmbeddedServer, error) {
	srv, err := StartEmbeddedServer(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded server: %w", err)
	}

	bus, err := NewEventBus(TestConfig(srv.URL()))
	if err != nil {
		srv.Shutdown()
		return nil, nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	return bus, srv, nil
}
