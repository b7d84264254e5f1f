package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestGetEffectiveUserAgent(t *testing.T) {
	appCfg := AppConfig{
		DefaultUserAgent: "global-agent",
		Hosts:            map[string]HostConfig{"example.test": {UserAgent: "host-agent"}},
	}
	assert.Equal(t, "host-agent", GetEffectiveUserAgent("example.test", appCfg))
	assert.Equal(t, "global-agent", GetEffectiveUserAgent("other.test", appCfg))
}

func TestGetEffectiveDelayPerHost(t *testing.T) {
	appCfg := AppConfig{
		DelayPerHost: time.Second,
		Hosts:        map[string]HostConfig{"slow.test": {DelayPerHost: 5 * time.Second}},
	}
	assert.Equal(t, 5*time.Second, GetEffectiveDelayPerHost("slow.test", appCfg))
	assert.Equal(t, time.Second, GetEffectiveDelayPerHost("fast.test", appCfg))
}

func TestGetEffectiveMaxResourceSize(t *testing.T) {
	tests := []struct {
		name     string
		host     HostConfig
		global   int64
		expected int64
	}{
		{"HostOverrideWins", HostConfig{MaxResourceSizeBytes: int64Ptr(10)}, 100, 10},
		{"HostZeroMeansUnlimited", HostConfig{MaxResourceSizeBytes: int64Ptr(0)}, 100, 0},
		{"FallbackToGlobal", HostConfig{}, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appCfg := AppConfig{
				MaxResourceSizeBytes: tt.global,
				Hosts:                map[string]HostConfig{"example.test": tt.host},
			}
			assert.Equal(t, tt.expected, GetEffectiveMaxResourceSize("example.test", appCfg))
		})
	}
}

func TestGetEffectiveManifestFilename(t *testing.T) {
	assert.Empty(t, GetEffectiveManifestFilename(AppConfig{ManifestFilename: "x.tsv"}))
	assert.Equal(t, DefaultManifestFilename, GetEffectiveManifestFilename(AppConfig{EnableManifest: true}))
	assert.Equal(t, "x.tsv", GetEffectiveManifestFilename(AppConfig{EnableManifest: true, ManifestFilename: "x.tsv"}))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
output_dir: ./mirrors
failure_policy: fail-open
num_workers: 6
delay_per_host: 250ms
max_resource_size_bytes: 1048576
http_client_settings:
  timeout: 20s
hosts:
  example.test:
    user_agent: custom-agent
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./mirrors", cfg.OutputDir)
	assert.Equal(t, FailOpen, cfg.FailurePolicy)
	assert.Equal(t, 6, cfg.NumWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.DelayPerHost)
	assert.Equal(t, int64(1048576), cfg.MaxResourceSizeBytes)
	assert.Equal(t, 20*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, "custom-agent", cfg.Hosts["example.test"].UserAgent)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, AppConfig{}, *cfg)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("num_workers: [oops"), 0644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}
