package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/page-mirror/pkg/models"
	"github.com/Sriram-PR/page-mirror/pkg/naming"
	"github.com/Sriram-PR/page-mirror/pkg/orchestrate"
	"github.com/Sriram-PR/page-mirror/pkg/parse"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// handleMirrorPage handles the mirror_page tool
func (s *Server) handleMirrorPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	outputDir := request.GetString("output_dir", s.cfg.AppConfig.OutputDir)
	wait := request.GetBool("wait", true)

	pageURL, _, err := parse.ParsePageURL(urlStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
	}
	if absDir, err := filepath.Abs(outputDir); err == nil {
		outputDir = absDir
	}

	job, created := s.jobManager.CreateJob(pageURL, outputDir)
	if created {
		go s.runMirrorJob(job.ID, pageURL, outputDir)
	} else {
		s.log.Infof("Mirror of '%s' already running as job %s", pageURL, job.ID)
	}

	if !wait {
		return mcp.NewToolResultText(formatJSON(s.jobReport(job.ID))), nil
	}

	select {
	case <-s.jobManager.Done(job.ID):
	case <-ctx.Done():
		return mcp.NewToolResultError(fmt.Sprintf("request cancelled; job %s continues in the background", job.ID)), nil
	}

	report := s.jobReport(job.ID)
	if status := s.jobManager.GetJob(job.ID).Status; status != JobStatusCompleted {
		return mcp.NewToolResultError(formatJSON(report)), nil
	}
	return mcp.NewToolResultText(formatJSON(report)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if s.jobManager.GetJob(jobID) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}
	return mcp.NewToolResultText(formatJSON(s.jobReport(jobID))), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}
	if !s.jobManager.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' is already %s", jobID, job.Status)), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"job_id": jobID,
		"status": JobStatusCancelled,
	})), nil
}

// handleDeriveFilename handles the derive_filename tool
func (s *Server) handleDeriveFilename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageStr := request.GetString("page_url", "")
	reference := request.GetString("reference", "")
	if pageStr == "" || reference == "" {
		return mcp.NewToolResultError("page_url and reference parameters are required"), nil
	}

	pageURL, page, err := parse.ParsePageURL(pageStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid page URL: %v", err)), nil
	}

	result := map[string]interface{}{
		"page_url":         pageURL,
		"reference":        reference,
		"html_file":        naming.HTMLFileName(page),
		"mirror_directory": naming.MirrorDirName(page),
	}

	isLocal, err := parse.Classify(reference, page)
	switch {
	case err != nil:
		result["locality"] = string(models.AssetStatusMalformed)
		result["error_type"] = utils.CategorizeError(err)
		return mcp.NewToolResultText(formatJSON(result)), nil
	case !isLocal:
		result["locality"] = string(models.AssetStatusForeign)
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	filename, err := naming.DeriveFilename(page, reference)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot derive filename: %v", err)), nil
	}
	absURL, err := parse.ToAbsolute(page, reference)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot resolve reference: %v", err)), nil
	}
	result["locality"] = string(models.AssetStatusLocal)
	result["absolute_url"] = absURL
	result["filename"] = filename
	result["relative_path"] = naming.MirrorDirName(page) + "/" + filename
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runMirrorJob executes a mirror in the background
func (s *Server) runMirrorJob(jobID, pageURL, outputDir string) {
	ctx := s.jobManager.GetContext(jobID)
	jobLog := s.log.WithField("job_id", jobID)
	s.jobManager.Start(jobID)

	mirrorer := orchestrate.NewMirrorer(s.cfg.AppConfig, s.downloader, jobObserver{jobs: s.jobManager, jobID: jobID}, jobLog)
	result, err := mirrorer.Download(ctx, models.PageRequest{URL: pageURL, OutputDir: outputDir})
	if err != nil {
		jobLog.Errorf("Mirror job failed: %v", err)
		s.jobManager.Finish(jobID, nil, utils.CategorizeError(err), err.Error())
		return
	}
	jobLog.Infof("Mirror job completed: %s", result.HTMLFilePath)
	s.jobManager.Finish(jobID, result, "", "")
}

// jobReport renders a job and, once available, its mirror result
func (s *Server) jobReport(jobID string) map[string]interface{} {
	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return map[string]interface{}{"job_id": jobID, "status": "unknown"}
	}

	report := map[string]interface{}{
		"job_id":         job.ID,
		"page_url":       job.PageURL,
		"output_dir":     job.OutputDir,
		"status":         job.Status,
		"started_at":     job.StartedAt,
		"assets_planned": job.AssetsPlanned,
		"assets_done":    job.AssetsDone,
		"assets_failed":  job.AssetsFailed,
	}
	if !job.CompletedAt.IsZero() {
		report["completed_at"] = job.CompletedAt
		report["duration"] = job.CompletedAt.Sub(job.StartedAt).String()
	}
	if job.ErrorMessage != "" {
		report["error_type"] = job.ErrorType
		report["error"] = job.ErrorMessage
	}

	if result := s.jobManager.Result(jobID); result != nil {
		assets := make([]map[string]interface{}, 0, len(result.Assets))
		for _, a := range result.Assets {
			assets = append(assets, map[string]interface{}{
				"source":     a.SourceValue,
				"kind":       a.Kind,
				"local_path": a.RelativePath,
				"size_bytes": a.SizeBytes,
			})
		}
		report["run_id"] = result.RunID
		report["html_file"] = result.HTMLFilePath
		report["mirror_directory"] = result.MirrorDirectoryPath
		report["assets"] = assets
		report["failed"] = result.Failed
		report["foreign"] = result.Foreign
		if result.ManifestPath != "" {
			report["manifest"] = result.ManifestPath
		}
	}
	return report
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
