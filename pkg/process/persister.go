package process

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-mirror/pkg/fetch"
	"github.com/Sriram-PR/page-mirror/pkg/models"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// ResourceFetcher retrieves page-like documents and raw resource bytes.
// *fetch.Downloader is the production implementation.
type ResourceFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*fetch.Page, error)
	FetchRaw(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// ResourcePersister downloads one LocalAsset and stores it in the mirror directory
type ResourcePersister struct {
	fetcher ResourceFetcher
	log     *logrus.Entry
}

// NewResourcePersister creates a persister
func NewResourcePersister(fetcher ResourceFetcher, log *logrus.Entry) *ResourcePersister {
	return &ResourcePersister{fetcher: fetcher, log: log}
}

// FetchAndStore fetches asset according to its FetchMode and writes the payload
// byte-exact to mirrorDir/asset.LocalFilename, filling SizeBytes and SHA256.
// Calling it again for the same asset overwrites the same file.
// Failures are *utils.FetchError or *utils.StorageError.
func (p *ResourcePersister) FetchAndStore(ctx context.Context, asset *models.LocalAsset, mirrorDir string) error {
	assetLog := p.log.WithFields(logrus.Fields{"value": asset.SourceValue, "kind": asset.Kind, "file": asset.LocalFilename})

	var page *fetch.Page
	var err error
	if asset.FetchMode == models.FetchModePage {
		page, err = p.fetcher.FetchPage(ctx, asset.AbsoluteURL)
	} else {
		page, err = p.fetcher.FetchRaw(ctx, asset.AbsoluteURL)
	}
	if err != nil {
		return err
	}

	destPath := filepath.Join(mirrorDir, asset.LocalFilename)
	if err := os.WriteFile(destPath, page.Body, 0644); err != nil {
		return utils.NewStorageError("write", destPath, err)
	}

	asset.SizeBytes = int64(len(page.Body))
	asset.SHA256 = utils.CalculateBytesSHA256(page.Body)
	assetLog.WithField("bytes", asset.SizeBytes).Debug("Resource stored")
	return nil
}
