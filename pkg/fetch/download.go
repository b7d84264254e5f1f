package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-mirror/pkg/config"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// Page is a fully read response body
type Page struct {
	URL         string // Final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// Downloader fetches the root page and its resources, applying the per-host
// politeness delay and concurrency cap around each retried request.
// Every failure it returns is a *utils.FetchError.
type Downloader struct {
	fetcher HTTPFetcher
	limiter *RateLimiter
	hosts   *HostSemaphorePool
	cfg     *config.AppConfig
	log     *logrus.Entry
}

// NewDownloader wires the request pipeline. limiter and hosts may be nil.
func NewDownloader(fetcher HTTPFetcher, limiter *RateLimiter, hosts *HostSemaphorePool, cfg *config.AppConfig, log *logrus.Entry) *Downloader {
	return &Downloader{
		fetcher: fetcher,
		limiter: limiter,
		hosts:   hosts,
		cfg:     cfg,
		log:     log,
	}
}

// FetchPage retrieves a document the way the root page is retrieved.
// Used for the page itself and for references carrying their own host.
func (d *Downloader) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	return d.get(ctx, rawURL, "text/html,application/xhtml+xml,*/*;q=0.8", 0)
}

// FetchRaw retrieves opaque bytes, enforcing the configured size limit for the host.
func (d *Downloader) FetchRaw(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, utils.NewFetchError(rawURL, 0, fmt.Errorf("%w: %v", utils.ErrRequestCreation, err))
	}
	return d.get(ctx, rawURL, "*/*", config.GetEffectiveMaxResourceSize(u.Hostname(), *d.cfg))
}

func (d *Downloader) get(ctx context.Context, rawURL, accept string, maxBytes int64) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, utils.NewFetchError(rawURL, 0, fmt.Errorf("%w: %v", utils.ErrRequestCreation, err))
	}
	host := req.URL.Hostname()
	req.Header.Set("User-Agent", config.GetEffectiveUserAgent(host, *d.cfg))
	req.Header.Set("Accept", accept)

	if d.hosts != nil {
		release, err := d.hosts.Acquire(ctx, host)
		if err != nil {
			return nil, utils.NewFetchError(rawURL, 0, err)
		}
		defer release()
	}
	if d.limiter != nil {
		if err := d.limiter.ApplyDelay(ctx, host, config.GetEffectiveDelayPerHost(host, *d.cfg)); err != nil {
			return nil, utils.NewFetchError(rawURL, 0, err)
		}
		defer d.limiter.UpdateLastRequestTime(host)
	}

	resp, err := d.fetcher.FetchWithRetry(req, ctx)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			drainAndClose(resp)
		} else {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				status = statusErr.Code
			}
		}
		return nil, utils.NewFetchError(rawURL, status, err)
	}
	defer resp.Body.Close()

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, utils.NewFetchError(rawURL, resp.StatusCode,
			fmt.Errorf("%w: Content-Length %d > %d", utils.ErrResourceTooLarge, resp.ContentLength, maxBytes))
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, utils.NewFetchError(rawURL, resp.StatusCode, fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, utils.NewFetchError(rawURL, resp.StatusCode,
			fmt.Errorf("%w: body exceeds %d bytes", utils.ErrResourceTooLarge, maxBytes))
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	d.log.WithFields(logrus.Fields{"url": rawURL, "bytes": len(data)}).Debug("Fetched")
	return &Page{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
