package orchestrate

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-mirror/pkg/config"
	"github.com/Sriram-PR/page-mirror/pkg/log"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

func TestValidateURLs(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		err := ValidateURLs([]string{"https://example.test/a", "https://example.test/b"})
		assert.NoError(t, err)
	})

	t.Run("one malformed", func(t *testing.T) {
		err := ValidateURLs([]string{"https://example.test/a", "missing"})
		require.Error(t, err)
		assert.ErrorIs(t, err, utils.ErrMalformedURL)
	})

	t.Run("same output names", func(t *testing.T) {
		err := ValidateURLs([]string{"https://example.test/a", "HTTPS://EXAMPLE.TEST/a#top"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "example-test-a.html")
	})

	t.Run("empty", func(t *testing.T) {
		assert.Error(t, ValidateURLs(nil))
	})
}

func TestOrchestrator_RunMirrorsPagesInOrder(t *testing.T) {
	site := newTestSite(t)
	site.addPage("/one", `<html><body><img src="/assets/a.png"></body></html>`)
	site.addPage("/two", `<html><head><link rel="stylesheet" href="/style.css"></head><body></body></html>`)
	cfg := testConfig(t, config.FailFast)

	o := NewOrchestrator(newTestMirrorer(cfg), cfg.OutputDir, 2, log.Discard())
	results := o.Run(context.Background(), []string{site.URL + "/one", site.URL + "/two", site.URL + "/missing"})

	require.Len(t, results, 3)
	assert.Equal(t, site.URL+"/one", results[0].URL)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.False(t, results[2].Success)
	assert.ErrorIs(t, results[2].Error, utils.ErrFetch)
	assert.True(t, Failed(results))

	for _, r := range results[:2] {
		assert.FileExists(t, r.Result.HTMLFilePath)
		assert.Len(t, r.Result.Assets, 1)
	}
	// Both pages reference the same host, so both asset directories were created
	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	cfg := testConfig(t, config.FailFast)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(newTestMirrorer(cfg), cfg.OutputDir, 1, log.Discard())
	results := o.Run(ctx, []string{"https://example.test/a"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Error(t, results[0].Error)
}
