package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-mirror/pkg/config"
)

func newTestServer(t *testing.T, policy config.FailurePolicy) *Server {
	t.Helper()
	cfg := &config.AppConfig{
		OutputDir:         t.TempDir(),
		FailurePolicy:     policy,
		InitialRetryDelay: time.Millisecond,
	}
	_, err := cfg.Validate()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s, err := NewServer(&ServerConfig{AppConfig: cfg, Transport: "stdio", Logger: logger})
	require.NoError(t, err)
	return s
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content type %T", res.Content[0])
	return ""
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, `<html><body><img src="/logo.png"><img src="https://cdn.other.test/x.png"></body></html>`)
		case "/broken":
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, `<html><body><img src="/gone.png"></body></html>`)
		case "/logo.png":
			w.Write([]byte("logo-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleDeriveFilename(t *testing.T) {
	s := newTestServer(t, config.FailFast)

	tests := []struct {
		name      string
		reference string
		locality  string
		filename  string
	}{
		{"root relative", "/assets/a.png", "local", "example-test-assets-a.png"},
		{"absolute same host", "https://example.test/style.css", "local", "example-test-style.css"},
		{"foreign host", "https://cdn.other.test/x.png", "foreign", ""},
		{"malformed", "http://[::1", "malformed", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleDeriveFilename(context.Background(), toolRequest("derive_filename", map[string]any{
				"page_url":  "https://example.test/courses",
				"reference": tt.reference,
			}))
			require.NoError(t, err)
			assert.False(t, res.IsError)

			out := resultJSON(t, res)
			assert.Equal(t, tt.locality, out["locality"])
			assert.Equal(t, "example-test-courses_files", out["mirror_directory"])
			if tt.filename != "" {
				assert.Equal(t, tt.filename, out["filename"])
				assert.Equal(t, "example-test-courses_files/"+tt.filename, out["relative_path"])
			} else {
				assert.NotContains(t, out, "filename")
			}
		})
	}
}

func TestHandleDeriveFilename_MissingParams(t *testing.T) {
	s := newTestServer(t, config.FailFast)
	res, err := s.handleDeriveFilename(context.Background(), toolRequest("derive_filename", map[string]any{"page_url": "https://example.test/"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleMirrorPage_Wait(t *testing.T) {
	s := newTestServer(t, config.FailFast)
	site := newSiteServer(t)

	res, err := s.handleMirrorPage(context.Background(), toolRequest("mirror_page", map[string]any{"url": site.URL + "/page"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	out := resultJSON(t, res)
	assert.Equal(t, string(JobStatusCompleted), out["status"])
	assert.EqualValues(t, 1, out["foreign"])
	assert.EqualValues(t, 1, out["assets_planned"])
	assert.EqualValues(t, 1, out["assets_done"])

	htmlFile, ok := out["html_file"].(string)
	require.True(t, ok)
	assert.FileExists(t, htmlFile)
	assets, ok := out["assets"].([]interface{})
	require.True(t, ok)
	assert.Len(t, assets, 1)
}

func TestHandleMirrorPage_FailureIsToolError(t *testing.T) {
	s := newTestServer(t, config.FailFast)
	site := newSiteServer(t)

	res, err := s.handleMirrorPage(context.Background(), toolRequest("mirror_page", map[string]any{"url": site.URL + "/broken"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	out := resultJSON(t, res)
	assert.Equal(t, string(JobStatusFailed), out["status"])
	assert.Equal(t, "HTTP_404", out["error_type"])
}

func TestHandleMirrorPage_BackgroundAndStatus(t *testing.T) {
	s := newTestServer(t, config.FailFast)
	site := newSiteServer(t)
	outDir := t.TempDir()

	res, err := s.handleMirrorPage(context.Background(), toolRequest("mirror_page", map[string]any{
		"url":        site.URL + "/page",
		"output_dir": outDir,
		"wait":       false,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	jobID, ok := resultJSON(t, res)["job_id"].(string)
	require.True(t, ok)

	select {
	case <-s.jobManager.Done(jobID):
	case <-time.After(10 * time.Second):
		t.Fatal("job did not finish")
	}

	res, err = s.handleGetJobStatus(context.Background(), toolRequest("get_job_status", map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, string(JobStatusCompleted), out["status"])
	assert.Equal(t, outDir, out["output_dir"])

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestHandleMirrorPage_InvalidURL(t *testing.T) {
	s := newTestServer(t, config.FailFast)
	res, err := s.handleMirrorPage(context.Background(), toolRequest("mirror_page", map[string]any{"url": "not a url"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Empty(t, s.jobManager.ListJobs())
}

func TestHandleGetJobStatus_Unknown(t *testing.T) {
	s := newTestServer(t, config.FailFast)
	res, err := s.handleGetJobStatus(context.Background(), toolRequest("get_job_status", map[string]any{"job_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleCancelJob(t *testing.T) {
	s := newTestServer(t, config.FailFast)
	job, _ := s.jobManager.CreateJob("https://example.test/a", t.TempDir())

	res, err := s.handleCancelJob(context.Background(), toolRequest("cancel_job", map[string]any{"job_id": job.ID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, JobStatusCancelled, s.jobManager.GetJob(job.ID).Status)

	res, err = s.handleCancelJob(context.Background(), toolRequest("cancel_job", map[string]any{"job_id": job.ID}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewServer_RequiresConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)
}

func TestRun_UnknownTransport(t *testing.T) {
	s := newTestServer(t, config.FailFast)
	s.cfg.Transport = "carrier-pigeon"
	assert.Error(t, s.Run())
}
