package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// FailurePolicy decides what a failed resource does to the rest of the run
type FailurePolicy string

const (
	// FailFast aborts the run on the first fetch or storage failure; no HTML is written
	FailFast FailurePolicy = "fail-fast"
	// FailOpen leaves the failed reference as authored and keeps going
	FailOpen FailurePolicy = "fail-open"
)

// ParseFailurePolicy accepts "fail-fast" or "fail-open" (case-insensitive, "_" allowed)
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "", string(FailFast):
		return FailFast, nil
	case string(FailOpen):
		return FailOpen, nil
	}
	return "", fmt.Errorf("%w: unknown failure_policy '%s' (want %s or %s)", utils.ErrConfigValidation, s, FailFast, FailOpen)
}

// HostConfig holds overrides for resources served from one host
type HostConfig struct {
	UserAgent            string        `yaml:"user_agent,omitempty"`
	DelayPerHost         time.Duration `yaml:"delay_per_host,omitempty"`
	MaxResourceSizeBytes *int64        `yaml:"max_resource_size_bytes,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	OutputDir            string                `yaml:"output_dir"`
	FailurePolicy        FailurePolicy         `yaml:"failure_policy"`
	NumWorkers           int                   `yaml:"num_workers"`
	MaxConcurrentPages   int                   `yaml:"max_concurrent_pages,omitempty"`
	MaxRequestsPerHost   int                   `yaml:"max_requests_per_host,omitempty"`
	DefaultUserAgent     string                `yaml:"default_user_agent"`
	DelayPerHost         time.Duration         `yaml:"delay_per_host,omitempty"`
	MaxRetries           int                   `yaml:"max_retries,omitempty"`
	InitialRetryDelay    time.Duration         `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay        time.Duration         `yaml:"max_retry_delay,omitempty"`
	MaxResourceSizeBytes int64                 `yaml:"max_resource_size_bytes,omitempty"`
	GlobalTimeout        time.Duration         `yaml:"global_timeout,omitempty"`
	StateDir             string                `yaml:"state_dir,omitempty"` // Empty = in-memory run journal
	EnableManifest       bool                  `yaml:"enable_manifest,omitempty"`
	ManifestFilename     string                `yaml:"manifest_filename,omitempty"`
	HTTPClientSettings   HTTPClientConfig      `yaml:"http_client_settings,omitempty"`
	Hosts                map[string]HostConfig `yaml:"hosts,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// Load reads a YAML config file. An empty path yields the zero config.
// Defaults are not applied here; call Validate.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config file '%s': %v", utils.ErrConfigValidation, path, err)
	}
	return cfg, nil
}

// GetEffectiveUserAgent determines the User-Agent sent to host
func GetEffectiveUserAgent(host string, appCfg AppConfig) string {
	if hc, ok := appCfg.Hosts[host]; ok && hc.UserAgent != "" {
		return hc.UserAgent
	}
	return appCfg.DefaultUserAgent
}

// GetEffectiveDelayPerHost determines the politeness delay for host
func GetEffectiveDelayPerHost(host string, appCfg AppConfig) time.Duration {
	if hc, ok := appCfg.Hosts[host]; ok && hc.DelayPerHost > 0 {
		return hc.DelayPerHost
	}
	return appCfg.DelayPerHost
}

// GetEffectiveMaxResourceSize determines the raw fetch size limit for host (0 = unlimited)
func GetEffectiveMaxResourceSize(host string, appCfg AppConfig) int64 {
	if hc, ok := appCfg.Hosts[host]; ok && hc.MaxResourceSizeBytes != nil {
		return *hc.MaxResourceSizeBytes
	}
	return appCfg.MaxResourceSizeBytes
}

// GetEffectiveManifestFilename returns the manifest name, or "" when manifests are disabled
func GetEffectiveManifestFilename(appCfg AppConfig) string {
	if !appCfg.EnableManifest {
		return ""
	}
	if appCfg.ManifestFilename != "" {
		return appCfg.ManifestFilename
	}
	return DefaultManifestFilename
}
