// Package config resolves command-line flags and environment variables into
// the immutable proxy configuration.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	ServerPort   uint16           `kong:"default='4000',help='Local listen port.',env='PROXY_SERVER_PORT'"`
	Host         string           `kong:"required,help='Upstream base URL, e.g. http://127.0.0.1:8888/.',env='PROXY_HOST'"`
	AllowHeaders string           `kong:"help='Comma-separated headers echoed in Access-Control-Allow-Headers (default Content-Type,Authorization).',env='PROXY_ALLOW_HEADERS'"`
	ListenHost   string           `kong:"default='127.0.0.1',help='Local listen host.',env='PROXY_LISTEN_HOST'"`
	Timeout      time.Duration    `kong:"default='120s',help='Upstream request timeout, 0 disables it.',env='PROXY_TIMEOUT'"`
	LogLevel     string           `kong:"default='info',enum='debug,info,warn,error',help='Log level: debug|info|warn|error.',env='LOG_LEVEL'"`
	LogFormat    string           `kong:"default='text',enum='text,json',help='Log format: text|json.',env='LOG_FORMAT'"`
	MetricsAddr  string           `kong:"name='metrics-listen',help='Serve Prometheus metrics on this address (disabled when empty).',env='PROXY_METRICS_LISTEN'"`
	Goleak       bool             `kong:"help='Report leaked goroutines on shutdown.'"`
	Version      kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	CORS     CORSConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Debug    DebugConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string
	Port uint16
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	// BaseURL never ends with a slash; Load strips all trailing slashes.
	BaseURL string
	Timeout time.Duration
}

// CORSConfig holds the cross-origin header settings.
type CORSConfig struct {
	// AllowHeaders is echoed verbatim; empty selects the annotator default.
	AllowHeaders string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Listen string
}

// DebugConfig holds developer switches.
type DebugConfig struct {
	Goleak bool
}

// Load builds a validated Config from the parsed CLI.
func Load(cli *CLI) (*Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: cli.ListenHost,
			Port: cli.ServerPort,
		},
		Upstream: UpstreamConfig{
			BaseURL: cli.Host,
			Timeout: cli.Timeout,
		},
		CORS:    CORSConfig{AllowHeaders: cli.AllowHeaders},
		Log:     LogConfig{Level: cli.LogLevel, Format: cli.LogFormat},
		Metrics: MetricsConfig{Listen: cli.MetricsAddr},
		Debug:   DebugConfig{Goleak: cli.Goleak},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("host is required")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("host is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("host must use http or https; got %q", c.Upstream.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("host must be an absolute URL; got %q", c.Upstream.BaseURL)
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return fmt.Errorf("host must not carry a query or fragment; got %q", c.Upstream.BaseURL)
	}

	if c.Server.Port == 0 {
		return fmt.Errorf("server port must be 1–65535; got 0")
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative; got %s", c.Upstream.Timeout)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics listen address %q: %w", c.Metrics.Listen, err)
		}
	}

	return nil
}

// setDefaults fills zero-valued fields. Kong already applies flag defaults;
// this covers configs built directly in code.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}
