package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-mirror/pkg/models"
)

const progressTemplate = `{{ string . "prefix" }} {{ counters . }} {{ bar . }} {{ percent . }} {{ string . "failed" }}`

// progressObserver renders resource downloads of every page on one bar
type progressObserver struct {
	bar     *pb.ProgressBar
	mu      sync.Mutex
	planned int64
	failed  int
}

func newProgressObserver(out io.Writer) *progressObserver {
	bar := pb.New(0)
	bar.SetTemplateString(progressTemplate)
	bar.SetWriter(out)
	bar.Set("prefix", "Resources")
	bar.SetMaxWidth(100)
	bar.SetRefreshRate(200 * time.Millisecond)
	bar.Start()
	return &progressObserver{bar: bar}
}

func (p *progressObserver) AssetsPlanned(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.planned += int64(n)
	p.bar.SetTotal(p.planned)
}

func (p *progressObserver) AssetDone(_ models.LocalAsset, err error) {
	if err != nil {
		p.mu.Lock()
		p.failed++
		p.bar.Set("failed", formatFailed(p.failed))
		p.mu.Unlock()
	}
	p.bar.Increment()
}

func (p *progressObserver) Finish() {
	p.bar.Finish()
}

// quietForProgress raises logger to warn so routine lines don't break up the
// bar, which shares stderr with the logger
func quietForProgress(logger *logrus.Logger) {
	if logger.IsLevelEnabled(logrus.InfoLevel) {
		logger.SetLevel(logrus.WarnLevel)
	}
}

func formatFailed(n int) string {
	return fmt.Sprintf("(%d failed)", n)
}
