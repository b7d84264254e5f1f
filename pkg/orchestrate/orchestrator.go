package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/page-mirror/pkg/models"
	"github.com/Sriram-PR/page-mirror/pkg/naming"
	"github.com/Sriram-PR/page-mirror/pkg/parse"
)

// PageResult contains the result of mirroring a single page
type PageResult struct {
	URL      string
	Success  bool
	Error    error
	Result   *models.MirrorResult
	Duration time.Duration
}

// Orchestrator mirrors several independent pages in parallel
type Orchestrator struct {
	mirrorer  *Mirrorer
	outputDir string
	log       *logrus.Entry

	// Bounds pages in flight; resource fetches are bounded per page and per host
	pageSemaphore *semaphore.Weighted
}

// NewOrchestrator creates an orchestrator running at most maxConcurrentPages downloads at once
func NewOrchestrator(mirrorer *Mirrorer, outputDir string, maxConcurrentPages int, log *logrus.Entry) *Orchestrator {
	if maxConcurrentPages <= 0 {
		maxConcurrentPages = 1
	}
	return &Orchestrator{
		mirrorer:      mirrorer,
		outputDir:     outputDir,
		log:           log,
		pageSemaphore: semaphore.NewWeighted(int64(maxConcurrentPages)),
	}
}

// Run mirrors every URL and waits for completion.
// Results are returned in input order.
func (o *Orchestrator) Run(ctx context.Context, urls []string) []PageResult {
	startTime := time.Now()
	o.log.Infof("Mirroring %d page(s)", len(urls))

	results := make([]PageResult, len(urls))
	done := make(chan struct{}, len(urls))

	for i, pageURL := range urls {
		go func() {
			defer func() { done <- struct{}{} }()
			results[i] = o.mirrorPage(ctx, pageURL)
		}()
	}
	for range urls {
		<-done
	}

	o.logSummary(results, time.Since(startTime))
	return results
}

// mirrorPage runs one Download under the page semaphore
func (o *Orchestrator) mirrorPage(ctx context.Context, pageURL string) PageResult {
	startTime := time.Now()
	result := PageResult{URL: pageURL}

	if err := o.pageSemaphore.Acquire(ctx, 1); err != nil {
		result.Error = err
		return result
	}
	defer o.pageSemaphore.Release(1)

	mirrorResult, err := o.mirrorer.Download(ctx, models.PageRequest{URL: pageURL, OutputDir: o.outputDir})
	if err != nil {
		result.Error = err
		o.log.Errorf("Mirror failed for '%s': %v", pageURL, err)
	} else {
		result.Success = true
		result.Result = mirrorResult
	}
	result.Duration = time.Since(startTime)
	return result
}

// logSummary logs a summary of all mirror results
func (o *Orchestrator) logSummary(results []PageResult, totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Mirroring completed in %v", totalDuration)
	o.log.Info("Page Results:")

	var totalAssets, totalFailed int
	successCount := 0
	failCount := 0

	for _, r := range results {
		if !r.Success {
			failCount++
			o.log.Infof("  %s: FAILED in %v", r.URL, r.Duration)
			if r.Error != nil {
				o.log.Infof("    Error: %s", describeError(r.Error))
			}
			continue
		}
		successCount++
		totalAssets += len(r.Result.Assets)
		totalFailed += len(r.Result.Failed)
		o.log.Infof("  %s: SUCCESS - %d assets (%d failed, %d foreign) in %v",
			r.URL, len(r.Result.Assets), len(r.Result.Failed), r.Result.Foreign, r.Duration)
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d pages (%d success, %d failed), %d assets localized, %d skipped",
		len(results), successCount, failCount, totalAssets, totalFailed)
	o.log.Info("============================================")
}

// ValidateURLs checks that every URL parses and that no two URLs map to the
// same output names, which would make their mirror directories collide
func ValidateURLs(urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("no page URL given")
	}
	seen := make(map[string]string, len(urls))
	for _, raw := range urls {
		_, page, err := parse.ParsePageURL(raw)
		if err != nil {
			return err
		}
		base := naming.BaseName(page)
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("'%s' and '%s' would both be saved as '%s'", prev, raw, naming.HTMLFileName(page))
		}
		seen[base] = raw
	}
	return nil
}

// Failed reports whether any page in results failed
func Failed(results []PageResult) bool {
	for _, r := range results {
		if !r.Success {
			return true
		}
	}
	return false
}
