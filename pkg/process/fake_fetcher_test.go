package process

import (
	"context"
	"net/http"
	"sync"

	"github.com/Sriram-PR/page-mirror/pkg/fetch"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// fakeFetcher serves canned bodies keyed by absolute URL
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	status map[string]int
	calls  map[string]int
	modes  map[string]string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string][]byte),
		status: make(map[string]int),
		calls:  make(map[string]int),
		modes:  make(map[string]string),
	}
}

func (f *fakeFetcher) serve(url string, body []byte) {
	f.bodies[url] = body
}

func (f *fakeFetcher) fail(url string, code int) {
	f.status[url] = code
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) get(url, mode string) (*fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	f.modes[url] = mode
	if code, ok := f.status[url]; ok {
		return nil, utils.NewFetchError(url, code, http.ErrMissingFile)
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, utils.NewFetchError(url, http.StatusNotFound, http.ErrMissingFile)
	}
	return &fetch.Page{URL: url, StatusCode: http.StatusOK, Body: body}, nil
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string) (*fetch.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.NewFetchError(url, 0, err)
	}
	return f.get(url, "page")
}

func (f *fakeFetcher) FetchRaw(ctx context.Context, url string) (*fetch.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.NewFetchError(url, 0, err)
	}
	return f.get(url, "raw")
}
