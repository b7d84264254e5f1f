package config

import (
	"fmt"
	"time"

	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

const (
	DefaultUserAgent        = "page-mirror/1.0 (+https://github.com/Sriram-PR/page-mirror)"
	DefaultManifestFilename = "manifest.tsv"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// FailurePolicy
	policy, err := ParseFailurePolicy(string(c.FailurePolicy))
	if err != nil {
		return warnings, err
	}
	c.FailurePolicy = policy

	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 4")
		c.NumWorkers = 4
	}

	// MaxConcurrentPages
	if c.MaxConcurrentPages <= 0 {
		c.MaxConcurrentPages = 2
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = c.NumWorkers
	}

	// OutputDir
	if c.OutputDir == "" {
		warnings = append(warnings, "output_dir is empty, defaulting to '.'")
		c.OutputDir = "."
	}

	// DefaultUserAgent
	if c.DefaultUserAgent == "" {
		c.DefaultUserAgent = DefaultUserAgent
	}

	// DelayPerHost
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, disabling delay")
		c.DelayPerHost = 0
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// GlobalTimeout
	if c.GlobalTimeout < 0 {
		warnings = append(warnings, "global_timeout cannot be negative, disabling timeout")
		c.GlobalTimeout = 0
	}

	// MaxResourceSizeBytes
	if c.MaxResourceSizeBytes < 0 {
		warnings = append(warnings, "max_resource_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxResourceSizeBytes = 0
	}

	c.validateHTTPClientSettings()

	// Manifest filename
	if c.EnableManifest && c.ManifestFilename == "" {
		warnings = append(warnings,
			"'enable_manifest' is true but 'manifest_filename' is empty. Defaulting to '"+DefaultManifestFilename+"'")
		c.ManifestFilename = DefaultManifestFilename
	}

	for host, hc := range c.Hosts {
		hostWarnings, err := hc.Validate(host)
		if err != nil {
			return warnings, err
		}
		warnings = append(warnings, hostWarnings...)
		c.Hosts[host] = hc
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.NumWorkers
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}

// Validate checks HostConfig fields for the named host.
// Modifies receiver in place.
func (c *HostConfig) Validate(host string) (warnings []string, err error) {
	if host == "" {
		return nil, fmt.Errorf("%w: hosts entry with empty host name", utils.ErrConfigValidation)
	}
	if c.DelayPerHost < 0 {
		warnings = append(warnings, fmt.Sprintf("hosts[%s].delay_per_host cannot be negative, ignoring override", host))
		c.DelayPerHost = 0
	}
	if c.MaxResourceSizeBytes != nil && *c.MaxResourceSizeBytes < 0 {
		warnings = append(warnings, fmt.Sprintf("hosts[%s].max_resource_size_bytes cannot be negative, setting to 0 (unlimited override)", host))
		zero := int64(0)
		c.MaxResourceSizeBytes = &zero
	}
	return warnings, nil
}
