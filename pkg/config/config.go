// Package config loads client settings from a TOML or YAML file and the
// environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/st9db/st9.go/pkg/connection"
	"github.com/st9db/st9.go/pkg/constants"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 7331

	EnvURL                = "ST9_URL"
	EnvHost               = "ST9_HOST"
	EnvPort               = "ST9_PORT"
	EnvAllowCascades      = "ST9_ALLOW_CASCADES"
	EnvDisableIdentityMap = "ST9_DISABLE_IDENTITY_MAP"
	EnvLogLevel           = "ST9_LOG_LEVEL"
)

// Duration reads "1.5s" style strings from either file format.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Retry struct {
	MaxRetries     int      `toml:"max_retries" yaml:"max_retries"`
	InitialBackoff Duration `toml:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff" yaml:"max_backoff"`
	Jitter         float64  `toml:"jitter" yaml:"jitter"`
}

// Config holds everything a DB needs besides its type declarations.
type Config struct {
	// URL wins over Host and Port when set.
	URL     string   `toml:"url" yaml:"url"`
	Host    string   `toml:"host" yaml:"host"`
	Port    int      `toml:"port" yaml:"port"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`

	// AllowCascades gates every operation that walks has-many edges.
	AllowCascades bool `toml:"allow_cascades" yaml:"allow_cascades"`
	// IdentityMap is on unless set to false.
	IdentityMap *bool `toml:"identity_map" yaml:"identity_map"`

	MultiGetBatchSize int `toml:"multi_get_batch_size" yaml:"multi_get_batch_size"`
	// HasManyPageSize is the page size of has-many scans; 0 leaves it to the
	// server.
	HasManyPageSize int `toml:"has_many_page_size" yaml:"has_many_page_size"`

	LogLevel string `toml:"log_level" yaml:"log_level"`
	Retry    Retry  `toml:"retry" yaml:"retry"`
}

func Default() *Config {
	return &Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		Timeout:           Duration(constants.DefaultHTTPTimeout),
		MultiGetBatchSize: constants.MultiGetBatchMax,
		LogLevel:          "info",
	}
}

// Load reads path on top of Default, picking the format from the
// extension, then applies environment overrides. An empty path only reads
// the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(filepath.Ext(path), data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".toml":
		return toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	}
	return fmt.Errorf("%w: unknown config format %q", constants.ErrInvalidArgument, ext)
}

// ApplyEnv overrides fields from the ST9_* variables visible through
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", constants.ErrInvalidArgument, EnvPort, v)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvAllowCascades); ok && v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", constants.ErrInvalidArgument, EnvAllowCascades, v)
		}
		c.AllowCascades = allow
	}
	if v, ok := lookup(EnvDisableIdentityMap); ok && v != "" {
		on := false
		c.IdentityMap = &on
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

func (c *Config) IdentityMapEnabled() bool {
	return c.IdentityMap == nil || *c.IdentityMap
}

// Endpoint is URL, or http://Host:Port.
func (c *Config) Endpoint() (*url.URL, error) {
	raw := c.URL
	if raw == "" {
		host := c.Host
		if host == "" {
			host = DefaultHost
		}
		port := c.Port
		if port == 0 {
			port = DefaultPort
		}
		raw = constants.HTTPScheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidArgument, err)
	}
	return u, nil
}

// Retryer builds the transport retry policy. No retries configured means
// connection.NoRetry.
func (c *Config) Retryer() connection.Retryer {
	if c.Retry.MaxRetries <= 0 {
		return connection.NoRetry{}
	}
	r := connection.NewExponentialBackoffRetryer(c.Retry.MaxRetries)
	if c.Retry.InitialBackoff > 0 {
		r.InitialDelay = time.Duration(c.Retry.InitialBackoff)
	}
	if c.Retry.MaxBackoff > 0 {
		r.MaxDelay = time.Duration(c.Retry.MaxBackoff)
	}
	if c.Retry.Jitter > 0 {
		r.JitterFactor = c.Retry.Jitter
	}
	return r
}
