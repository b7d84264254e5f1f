package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-mirror/pkg/config"
	"github.com/Sriram-PR/page-mirror/pkg/document"
	"github.com/Sriram-PR/page-mirror/pkg/fetch"
	"github.com/Sriram-PR/page-mirror/pkg/models"
	"github.com/Sriram-PR/page-mirror/pkg/naming"
	"github.com/Sriram-PR/page-mirror/pkg/parse"
	"github.com/Sriram-PR/page-mirror/pkg/process"
	"github.com/Sriram-PR/page-mirror/pkg/storage"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// NewDownloader builds the shared request pipeline for appCfg: HTTP client,
// retrying fetcher, per-host politeness delay and per-host concurrency cap.
// The returned pool may be handed to RunEviction by long-lived callers.
func NewDownloader(appCfg *config.AppConfig, log *logrus.Entry) (*fetch.Downloader, *fetch.HostSemaphorePool) {
	fetchLog := log.WithField("component", "fetch")
	client := fetch.NewClient(appCfg.HTTPClientSettings, fetchLog)
	fetcher := fetch.NewFetcher(client, appCfg, fetchLog)
	limiter := fetch.NewRateLimiter(appCfg.DelayPerHost, fetchLog)
	hosts := fetch.NewHostSemaphorePool(appCfg.MaxRequestsPerHost, fetchLog)
	return fetch.NewDownloader(fetcher, limiter, hosts, appCfg, fetchLog), hosts
}

// Mirrorer saves one page and its same-origin resources to disk
type Mirrorer struct {
	appCfg   *config.AppConfig
	fetcher  process.ResourceFetcher
	observer process.Observer
	log      *logrus.Entry
}

// NewMirrorer creates a Mirrorer. appCfg must already be validated; observer may be nil.
func NewMirrorer(appCfg *config.AppConfig, fetcher process.ResourceFetcher, observer process.Observer, log *logrus.Entry) *Mirrorer {
	return &Mirrorer{
		appCfg:   appCfg,
		fetcher:  fetcher,
		observer: observer,
		log:      log,
	}
}

// Download mirrors req.URL into req.OutputDir (or the configured output_dir).
//
// It writes <outputDir>/<base>.html and <outputDir>/<base>_files/. The asset
// directory must not exist yet. Errors are *utils.MalformedURLError,
// *utils.FetchError or *utils.StorageError; nothing but the HTML file is
// written last, so a failed run never leaves a half-rewritten page behind.
func (m *Mirrorer) Download(ctx context.Context, req models.PageRequest) (*models.MirrorResult, error) {
	startTime := time.Now()
	if m.appCfg.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.appCfg.GlobalTimeout)
		defer cancel()
	}

	pageURL, page, err := parse.ParsePageURL(req.URL)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	runLog := m.log.WithFields(logrus.Fields{"run_id": runID, "page_url": pageURL})

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = m.appCfg.OutputDir
	}
	if outputDir == "" {
		outputDir = "."
	}

	runLog.Info("Fetching page")
	fetched, err := m.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	htmlPath := filepath.Join(outputDir, naming.HTMLFileName(page))
	mirrorDirPath := filepath.Join(outputDir, naming.MirrorDirName(page))

	if err := os.Mkdir(mirrorDirPath, 0755); err != nil {
		return nil, utils.NewStorageError("create mirror directory", mirrorDirPath, err)
	}
	success := false
	defer func() {
		if success {
			return
		}
		// The directory is ours: it did not exist before this run
		if rmErr := os.RemoveAll(mirrorDirPath); rmErr != nil {
			runLog.Warnf("Failed to remove partial mirror directory '%s': %v", mirrorDirPath, rmErr)
		}
	}()

	doc, err := document.ParseEncoded(fetched.Body, fetched.ContentType)
	if err != nil {
		return nil, err
	}

	journal, err := storage.NewBadgerJournal(m.appCfg.StateDir, naming.BaseName(page), runLog.WithField("component", "journal"))
	if err != nil {
		return nil, utils.WrapErrorf(err, "opening run journal for '%s'", pageURL)
	}
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			runLog.Warnf("Failed to close run journal: %v", closeErr)
		}
	}()

	rewriter := process.NewRewriter(
		process.NewResourcePersister(m.fetcher, runLog.WithField("component", "persister")),
		journal,
		m.appCfg.FailurePolicy,
		m.appCfg.NumWorkers,
		m.observer,
		runLog.WithField("component", "rewriter"),
	)
	rewritten, err := rewriter.Localize(ctx, doc, page, mirrorDirPath)
	if err != nil {
		return nil, err
	}

	html, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(htmlPath, html, 0644); err != nil {
		return nil, utils.NewStorageError("write html", htmlPath, err)
	}

	result := &models.MirrorResult{
		RunID:               runID,
		PageURL:             pageURL,
		HTMLFilePath:        htmlPath,
		MirrorDirectoryPath: mirrorDirPath,
		Assets:              rewritten.Assets,
		Failed:              rewritten.Failed,
		Foreign:             rewritten.Foreign,
	}

	if manifestName := config.GetEffectiveManifestFilename(*m.appCfg); manifestName != "" {
		manifestPath := filepath.Join(outputDir, naming.BaseName(page)+"_"+manifestName)
		meta := storage.ManifestMeta{RunID: runID, PageURL: pageURL, MirrorDir: mirrorDirPath}
		if err := journal.WriteManifest(manifestPath, meta); err != nil {
			// The mirror itself is complete
			runLog.Warnf("Failed to write manifest: %v", err)
		} else {
			result.ManifestPath = manifestPath
		}
	}

	success = true
	result.Duration = time.Since(startTime)
	runLog.WithFields(logrus.Fields{
		"assets":   len(result.Assets),
		"failed":   len(result.Failed),
		"foreign":  result.Foreign,
		"duration": result.Duration,
	}).Infof("Page mirrored to '%s'", htmlPath)
	return result, nil
}

// describeError renders err with its category for summaries
func describeError(err error) string {
	var storageErr *utils.StorageError
	if errors.As(err, &storageErr) && errors.Is(err, os.ErrExist) {
		return fmt.Sprintf("%s (mirror directory already exists, remove it to mirror again)", utils.CategorizeError(err))
	}
	return fmt.Sprintf("%s: %v", utils.CategorizeError(err), err)
}
