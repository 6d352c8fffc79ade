package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/caarlos0/env/v11"
	"github.com/plaenen/refactory/pkg/observability"
)

// Config is read from the environment.
type Config struct {
	DB          string `env:"FACTORY_DB"           envDefault:"factory.db"`
	AggregateID string `env:"FACTORY_AGGREGATE_ID" envDefault:"factory"`
	ListenAddr  string `env:"FACTORY_LISTEN_ADDR"  envDefault:":8080"`
	// MaxRequestBytes caps the size of one request body served by serve.
	MaxRequestBytes int `env:"FACTORY_MAX_REQUEST_BYTES" envDefault:"1048576"`
	// RemoteURL sends commands to a running server instead of the local database.
	RemoteURL    string `env:"FACTORY_REMOTE_URL"`
	Principal    string `env:"FACTORY_PRINCIPAL"`
	NATSURL      string `env:"FACTORY_NATS_URL"`
	EmbeddedNATS bool   `env:"FACTORY_EMBEDDED_NATS"`
	NATSStoreDir string `env:"FACTORY_NATS_STORE_DIR"`
	LogLevel     string `env:"FACTORY_LOG_LEVEL"    envDefault:"info"`
	LogFormat    string `env:"FACTORY_LOG_FORMAT"   envDefault:"text"`

	TraceExporter   string  `env:"FACTORY_TRACE_EXPORTER"    envDefault:"none"`
	TraceDB         string  `env:"FACTORY_TRACE_DB"          envDefault:"factory-traces.db"`
	OTLPEndpoint    string  `env:"FACTORY_OTLP_ENDPOINT"`
	TraceSampleRate float64 `env:"FACTORY_TRACE_SAMPLE_RATE" envDefault:"1"`
}

// LoadConfig parses and validates the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if govalidator.IsNull(strings.TrimSpace(c.DB)) {
		errs = append(errs, errors.New("FACTORY_DB is required"))
	}
	if govalidator.IsNull(strings.TrimSpace(c.AggregateID)) {
		errs = append(errs, errors.New("FACTORY_AGGREGATE_ID is required"))
	}
	if !validListenAddr(c.ListenAddr) {
		errs = append(errs, fmt.Errorf("FACTORY_LISTEN_ADDR %q is not a host:port", c.ListenAddr))
	}
	if c.MaxRequestBytes <= 0 {
		errs = append(errs, fmt.Errorf("FACTORY_MAX_REQUEST_BYTES %d must be positive", c.MaxRequestBytes))
	}
	if c.RemoteURL != "" && !govalidator.IsRequestURL(c.RemoteURL) {
		errs = append(errs, fmt.Errorf("FACTORY_REMOTE_URL %q is not a URL", c.RemoteURL))
	}
	if c.NATSURL != "" && !govalidator.IsRequestURL(c.NATSURL) {
		errs = append(errs, fmt.Errorf("FACTORY_NATS_URL %q is not a URL", c.NATSURL))
	}
	if c.NATSURL != "" && c.EmbeddedNATS {
		errs = append(errs, errors.New("FACTORY_NATS_URL and FACTORY_EMBEDDED_NATS are exclusive"))
	}
	if !govalidator.IsIn(strings.ToLower(c.LogLevel), "debug", "info", "warn", "error") {
		errs = append(errs, fmt.Errorf("FACTORY_LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if !govalidator.IsIn(c.LogFormat, "text", "json") {
		errs = append(errs, fmt.Errorf("FACTORY_LOG_FORMAT %q is not text or json", c.LogFormat))
	}
	if !govalidator.IsIn(c.TraceExporter,
		observability.ExporterNone, observability.ExporterStdout, observability.ExporterOTLP, observability.ExporterSQLite) {
		errs = append(errs, fmt.Errorf("FACTORY_TRACE_EXPORTER %q is not supported", c.TraceExporter))
	}
	if c.TraceExporter == observability.ExporterOTLP && !govalidator.IsRequestURL(c.OTLPEndpoint) {
		errs = append(errs, errors.New("FACTORY_OTLP_ENDPOINT must be a URL when exporting over OTLP"))
	}
	if !govalidator.InRangeFloat64(c.TraceSampleRate, 0, 1) {
		errs = append(errs, fmt.Errorf("FACTORY_TRACE_SAMPLE_RATE %v is not within [0, 1]", c.TraceSampleRate))
	}

	return errors.Join(errs...)
}

func validListenAddr(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || !govalidator.IsPort(port) {
		return false
	}
	return host == "" || govalidator.IsHost(host)
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
