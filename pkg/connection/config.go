package connection

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/logger"
)

// Config holds what a transport needs to reach the store.
type Config struct {
	URL     url.URL
	BaseURL string
	Logger  logger.Logger
	Timeout time.Duration
	Retryer Retryer
}

// NewConfig creates a Config for the ST9 endpoint at u, such as
// "http://localhost:7000". Any path on u is kept as a prefix.
func NewConfig(u *url.URL) *Config {
	return &Config{
		URL:     *u,
		BaseURL: strings.TrimSuffix(fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path), "/"),
		Logger:  logger.Nop(),
		Timeout: constants.DefaultHTTPTimeout,
		Retryer: NoRetry{},
	}
}

// Validate checks the endpoint before a transport is built from it.
func (c *Config) Validate() error {
	if c.BaseURL == "" || c.URL.Host == "" {
		return constants.ErrNoBaseURL
	}
	switch c.URL.Scheme {
	case constants.HTTPScheme, constants.HTTPSecureScheme:
		return nil
	}
	return fmt.Errorf("%w: unsupported scheme %q", constants.ErrInvalidArgument, c.URL.Scheme)
}
