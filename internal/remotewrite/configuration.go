package remotewrite

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	// defaultBatchSize matches one scan's worth of system metrics plus a
	// few modules, so a typical scan flushes in one or two requests.
	defaultBatchSize = 16

	maxBatchSize = 500
)

// Configuration holds the settings for the Prometheus remote_write sink.
type Configuration struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"` // Required when enabled

	// Timeout for HTTP requests (default: 30s)
	Timeout string `yaml:"timeout"`

	// BatchSize is how many timeseries accumulate before a write request
	// is sent (default: 16).
	BatchSize int `yaml:"batchSize"`

	// BasicAuth configuration (optional)
	BasicAuth *BasicAuthConfig `yaml:"basicAuth,omitempty"`

	// BearerToken for authentication (optional, mutually exclusive with BasicAuth)
	BearerToken string `yaml:"bearerToken,omitempty"`

	// Headers allows custom headers to be added to requests (optional)
	// Example: X-Scope-OrgID for Cortex multi-tenancy
	Headers map[string]string `yaml:"headers,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Authentication credentials.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Validate checks if the configuration is valid.
func (c *Configuration) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.URL == "" {
		return fmt.Errorf("remoteWrite.url is required when enabled")
	}

	parsedURL, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("remoteWrite.url is invalid: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("remoteWrite.url must use http or https scheme")
	}

	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("remoteWrite.timeout is invalid: %w", err)
		}
	}

	if c.BatchSize < 0 || c.BatchSize > maxBatchSize {
		return fmt.Errorf("remoteWrite.batchSize must be between 1 and %d", maxBatchSize)
	}

	if c.BasicAuth != nil && c.BearerToken != "" {
		return fmt.Errorf("remoteWrite.basicAuth and remoteWrite.bearerToken are mutually exclusive")
	}

	if c.BasicAuth != nil {
		if c.BasicAuth.Username == "" {
			return fmt.Errorf("remoteWrite.basicAuth.username is required when basicAuth is configured")
		}
		if c.BasicAuth.Password == "" {
			return fmt.Errorf("remoteWrite.basicAuth.password is required when basicAuth is configured")
		}
	}

	return nil
}

// GetTimeout returns the configured timeout or the default.
func (c *Configuration) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return defaultTimeout
	}
	duration, err := time.ParseDuration(c.Timeout)
	if err != nil {
		// Should not happen if Validate() was called
		return defaultTimeout
	}
	return duration
}

// GetBatchSize returns the configured batch size or the default.
func (c *Configuration) GetBatchSize() int {
	if c.BatchSize <= 0 {
		return defaultBatchSize
	}
	return c.BatchSize
}
