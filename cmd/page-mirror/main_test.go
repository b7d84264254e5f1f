package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-mirror/pkg/config"
	"github.com/Sriram-PR/page-mirror/pkg/models"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, `<html><body><img src="/a.png"><img src="/gone.png"></body></html>`)
		case "/a.png":
			w.Write([]byte("png"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

func TestDoMirror_FailOpenPrintsHTMLPath(t *testing.T) {
	site := newSite(t)
	outDir := t.TempDir()

	var stdout, stderr bytes.Buffer
	exitCode := doMirror(context.Background(), []string{
		"-output", outDir, "-failure-policy", "fail-open", "-loglevel", "error", site.URL + "/page",
	}, &stdout, &stderr)

	require.Equal(t, 0, exitCode, stderr.String())
	htmlPath := strings.TrimSpace(stdout.String())
	assert.Equal(t, outDir, filepath.Dir(htmlPath))
	assert.FileExists(t, htmlPath)
}

func TestDoMirror_FailFastExitsNonZero(t *testing.T) {
	site := newSite(t)
	outDir := t.TempDir()

	var stdout, stderr bytes.Buffer
	exitCode := doMirror(context.Background(), []string{"-output", outDir, site.URL + "/page"}, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Empty(t, stdout.String())
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDoMirror_Manifest(t *testing.T) {
	site := newSite(t)
	outDir := t.TempDir()

	var stdout, stderr bytes.Buffer
	exitCode := doMirror(context.Background(), []string{
		"-output", outDir, "-failure-policy", "fail-open", "-manifest", "-progress", site.URL + "/page",
	}, &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())

	matches, err := filepath.Glob(filepath.Join(outDir, "*_manifest.tsv"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.NotContains(t, stderr.String(), "level=info")
}

func TestDoMirror_NoURL(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, doMirror(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage")
}

func TestDoMirror_MalformedURL(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, doMirror(context.Background(), []string{"-output", t.TempDir(), "not a url"}, &stdout, &stderr))
}

func TestDoMirror_BadPolicy(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doMirror(context.Background(), []string{"-failure-policy", "sometimes", "https://example.test/"}, &stdout, &stderr)
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Configuration error")
}

func TestApplyFlagOverrides_OnlyExplicitFlags(t *testing.T) {
	cfgPath := writeConfig(t, "num_workers: 7\nfailure_policy: fail-open\noutput_dir: /from/config\n")
	appCfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	var stderr bytes.Buffer
	f, urls, fs, err := parseMirrorFlags([]string{"-workers", "2", "https://example.test/"}, &stderr)
	require.NoError(t, err)
	applyFlagOverrides(appCfg, f, fs)

	assert.Equal(t, []string{"https://example.test/"}, urls)
	assert.Equal(t, 2, appCfg.NumWorkers)
	assert.Equal(t, config.FailOpen, appCfg.FailurePolicy)
	assert.Equal(t, "/from/config", appCfg.OutputDir)
}

func TestParseMirrorFlags_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, _, _, err := parseMirrorFlags([]string{"-h"}, &stderr)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestDoValidate(t *testing.T) {
	cfgPath := writeConfig(t, "num_workers: 3\nfailure_policy: fail_open\n")

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, []string{"https://example.test/a"}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), "failure_policy=fail-open")
	assert.Contains(t, stdout.String(), "num_workers=3")
	assert.Contains(t, stdout.String(), "OK: 1 URL(s)")
	assert.Contains(t, stdout.String(), "Configuration valid")
}

func TestDoValidate_InvalidPolicy(t *testing.T) {
	cfgPath := writeConfig(t, "failure_policy: maybe\n")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, doValidate(cfgPath, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "ERROR")
}

func TestDoValidate_InvalidURL(t *testing.T) {
	cfgPath := writeConfig(t, "num_workers: 1\n")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, doValidate(cfgPath, []string{"nope"}, &stdout, &stderr))
}

func TestDoValidate_ConfigNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("/nonexistent.yaml", nil, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error")
}

func TestDoMcpServer_BadInputs(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 1, doMcpServer("", "stdio", 0, "loud", &stderr))
	assert.Equal(t, 1, doMcpServer("/nonexistent.yaml", "stdio", 0, "info", &stderr))
	assert.Equal(t, 1, doMcpServer("", "carrier-pigeon", 0, "error", &stderr))
}

func TestProgressObserver(t *testing.T) {
	var out bytes.Buffer
	p := newProgressObserver(&out)
	p.AssetsPlanned(2)
	p.AssetsPlanned(1)
	p.AssetDone(models.LocalAsset{}, nil)
	p.AssetDone(models.LocalAsset{}, assert.AnError)
	p.Finish()

	assert.Equal(t, int64(3), p.bar.Total())
	assert.Equal(t, int64(2), p.bar.Current())
	assert.Equal(t, 1, p.failed)
}

func TestQuietForProgress(t *testing.T) {
	for _, tc := range []struct {
		level logrus.Level
		want  logrus.Level
	}{
		{logrus.DebugLevel, logrus.WarnLevel},
		{logrus.InfoLevel, logrus.WarnLevel},
		{logrus.ErrorLevel, logrus.ErrorLevel},
	} {
		logger := logrus.New()
		logger.SetLevel(tc.level)
		quietForProgress(logger)
		assert.Equal(t, tc.want, logger.GetLevel(), tc.level.String())
	}
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	assert.Contains(t, out, "<url>")
	assert.Contains(t, out, "validate")
	assert.Contains(t, out, "mcp-server")
	assert.Contains(t, out, "version")
}
