package process

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/page-mirror/pkg/config"
	"github.com/Sriram-PR/page-mirror/pkg/document"
	"github.com/Sriram-PR/page-mirror/pkg/models"
	"github.com/Sriram-PR/page-mirror/pkg/naming"
	"github.com/Sriram-PR/page-mirror/pkg/parse"
	"github.com/Sriram-PR/page-mirror/pkg/storage"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// ResourceReference is one element attribute pointing at a resource
type ResourceReference struct {
	Element   document.Element
	Kind      models.ResourceKind
	Attribute string
	RawValue  string
}

// Observer receives progress events while resources are fetched.
// AssetDone may be called from several goroutines at once.
type Observer interface {
	AssetsPlanned(n int)
	AssetDone(asset models.LocalAsset, err error)
}

// RewriteResult summarizes one Localize call
type RewriteResult struct {
	Assets    []models.LocalAsset // Fetched and rewritten, in discovery order
	Failed    map[string]string   // Raw value -> error category (fail-open only)
	Foreign   int                 // Distinct values left alone as foreign
	Malformed int                 // Distinct values left alone as unparseable
}

// Rewriter localizes the resources referenced by a document
type Rewriter struct {
	persister *ResourcePersister
	journal   storage.AssetJournal
	policy    config.FailurePolicy
	workers   int
	observer  Observer
	log       *logrus.Entry
}

// NewRewriter creates a Rewriter. observer may be nil.
func NewRewriter(persister *ResourcePersister, journal storage.AssetJournal, policy config.FailurePolicy, workers int, observer Observer, log *logrus.Entry) *Rewriter {
	if workers <= 0 {
		workers = 1
	}
	return &Rewriter{
		persister: persister,
		journal:   journal,
		policy:    policy,
		workers:   workers,
		observer:  observer,
		log:       log,
	}
}

// distinctValue groups every reference sharing one raw value
type distinctValue struct {
	asset  models.LocalAsset
	status models.AssetStatus
	refs   []ResourceReference
}

// CollectReferences lists the resource references of doc in kind order
// (image, link, script) and document order within a kind. Elements without
// the attribute, or with an empty value, are skipped; this drops inline scripts.
func CollectReferences(doc *document.Document) []ResourceReference {
	var refs []ResourceReference
	for _, kind := range models.ResourceKinds {
		for _, el := range doc.FindAll(kind.Tag) {
			value, ok := el.Attr(kind.Attribute)
			if !ok || strings.TrimSpace(value) == "" {
				continue
			}
			refs = append(refs, ResourceReference{Element: el, Kind: kind, Attribute: kind.Attribute, RawValue: value})
		}
	}
	return refs
}

// Localize fetches every same-origin resource referenced by doc into
// mirrorDirPath and points the owning elements at the local copies.
// The document is only mutated after all fetches finished. Under fail-fast the
// first failure is returned unchanged and doc is left untouched.
func (r *Rewriter) Localize(ctx context.Context, doc *document.Document, page *url.URL, mirrorDirPath string) (*RewriteResult, error) {
	values, err := r.plan(doc, page)
	if err != nil {
		return nil, err
	}

	result := &RewriteResult{Failed: make(map[string]string)}
	var local []*distinctValue
	for _, v := range values {
		switch v.status {
		case models.AssetStatusLocal:
			local = append(local, v)
		case models.AssetStatusForeign:
			result.Foreign++
		case models.AssetStatusMalformed:
			result.Malformed++
		}
	}

	r.log.WithFields(logrus.Fields{
		"distinct": len(values), "local": len(local), "foreign": result.Foreign, "malformed": result.Malformed,
	}).Info("Resources classified")
	if r.observer != nil {
		r.observer.AssetsPlanned(len(local))
	}

	if err := r.fetchAll(ctx, local, mirrorDirPath, result); err != nil {
		return nil, err
	}

	// Single writer from here on
	for _, v := range local {
		if v.status != models.AssetStatusFetched {
			continue
		}
		for _, ref := range v.refs {
			ref.Element.SetAttr(ref.Attribute, v.asset.RelativePath)
		}
		v.status = models.AssetStatusRewritten
		if err := r.record(v, ""); err != nil {
			return nil, err
		}
		result.Assets = append(result.Assets, v.asset)
	}
	return result, nil
}

// plan groups references by raw value, classifies each value once and assigns
// file names sequentially so naming never depends on fetch timing.
func (r *Rewriter) plan(doc *document.Document, page *url.URL) ([]*distinctValue, error) {
	refs := CollectReferences(doc)
	registry := naming.NewRegistry(page)
	mirrorDirName := naming.MirrorDirName(page)

	byValue := make(map[string]*distinctValue)
	var ordered []*distinctValue
	for _, ref := range refs {
		if v, ok := byValue[ref.RawValue]; ok {
			v.refs = append(v.refs, ref)
			v.asset.References++
			continue
		}
		v := &distinctValue{
			asset: models.LocalAsset{
				SourceValue: ref.RawValue,
				Kind:        ref.Kind.Name,
				ContentKind: ref.Kind.ContentKind,
				References:  1,
			},
			refs: []ResourceReference{ref},
		}
		byValue[ref.RawValue] = v
		ordered = append(ordered, v)
	}

	for _, v := range ordered {
		v.status = models.AssetStatusDiscovered
		if err := r.record(v, ""); err != nil {
			return nil, err
		}

		next, errType := r.classify(v, page, registry, mirrorDirName)
		v.status = next
		if err := r.record(v, errType); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// classify decides local/foreign/malformed and, for local values, fills in the
// absolute URL, fetch mode and file name
func (r *Rewriter) classify(v *distinctValue, page *url.URL, registry *naming.Registry, mirrorDirName string) (models.AssetStatus, string) {
	raw := v.asset.SourceValue
	valueLog := r.log.WithFields(logrus.Fields{"value": raw, "kind": v.asset.Kind})

	isLocal, err := parse.Classify(raw, page)
	if err != nil {
		valueLog.Warnf("Leaving malformed reference as authored: %v", err)
		return models.AssetStatusMalformed, utils.CategorizeError(err)
	}
	if !isLocal {
		valueLog.Debug("Foreign reference left as authored")
		return models.AssetStatusForeign, ""
	}

	absURL, err := parse.ToAbsolute(page, raw)
	if err == nil {
		v.asset.LocalFilename, err = registry.Assign(raw)
	}
	if err != nil {
		valueLog.Warnf("Leaving malformed reference as authored: %v", err)
		return models.AssetStatusMalformed, utils.CategorizeError(err)
	}

	v.asset.AbsoluteURL = absURL
	v.asset.RelativePath = mirrorDirName + "/" + v.asset.LocalFilename
	v.asset.FetchMode = models.FetchModeRaw
	if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Host != "" {
		v.asset.FetchMode = models.FetchModePage
	}
	return models.AssetStatusLocal, ""
}

// fetchAll runs FetchAndStore for every local value through a bounded pool
func (r *Rewriter) fetchAll(ctx context.Context, local []*distinctValue, mirrorDirPath string, result *RewriteResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	var mu sync.Mutex // Guards result.Failed and journal writes ordering per value

	for _, v := range local {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := r.persister.FetchAndStore(gctx, &v.asset, mirrorDirPath)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				category := utils.CategorizeError(err)
				v.status = models.AssetStatusFailed
				if recErr := r.record(v, category); recErr != nil {
					r.log.Warnf("Failed to journal failure for '%s': %v", v.asset.SourceValue, recErr)
				}
				if r.observer != nil {
					r.observer.AssetDone(v.asset, err)
				}
				if r.policy == config.FailOpen && ctx.Err() == nil {
					r.log.WithFields(logrus.Fields{"value": v.asset.SourceValue, "error_type": category}).
						Warnf("Resource failed, leaving reference unrewritten: %v", err)
					result.Failed[v.asset.SourceValue] = category
					return nil
				}
				return err
			}

			v.status = models.AssetStatusFetched
			if recErr := r.record(v, ""); recErr != nil {
				return recErr
			}
			if r.observer != nil {
				r.observer.AssetDone(v.asset, nil)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Rewriter) record(v *distinctValue, errType string) error {
	if r.journal == nil {
		return nil
	}
	return r.journal.Record(&models.AssetEntry{
		SourceValue:   v.asset.SourceValue,
		Kind:          v.asset.Kind,
		Status:        v.status,
		AbsoluteURL:   v.asset.AbsoluteURL,
		LocalFilename: v.asset.LocalFilename,
		RelativePath:  v.asset.RelativePath,
		ErrorType:     errType,
		SizeBytes:     v.asset.SizeBytes,
		SHA256:        v.asset.SHA256,
		References:    v.asset.References,
	})
}
