package naming

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// Registry hands out collision-free file names within one run.
// The same raw value always receives the same name; a distinct value whose
// derived name is taken gets a hash of the raw value inserted before the extension.
type Registry struct {
	page   *url.URL
	mu     sync.Mutex
	byRaw  map[string]string // raw value -> assigned name
	byName map[string]string // assigned name -> raw value
}

// NewRegistry creates an empty registry for page
func NewRegistry(page *url.URL) *Registry {
	return &Registry{
		page:   page,
		byRaw:  make(map[string]string),
		byName: make(map[string]string),
	}
}

// Assign returns the file name for raw, deriving and reserving it on first use.
// Assignment order matters for collisions, so callers assign in document order.
func (r *Registry) Assign(raw string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.byRaw[raw]; ok {
		return name, nil
	}

	name, err := DeriveFilename(r.page, raw)
	if err != nil {
		return "", err
	}

	if _, taken := r.byName[name]; taken {
		stem, ext := splitExt(name)
		candidate := truncate(stem+"-"+utils.ShortHash(raw, hashSuffixLen)+ext, ext, raw+"#collision")
		for i := 2; r.isTaken(candidate); i++ {
			candidate = truncate(fmt.Sprintf("%s-%s-%d%s", stem, utils.ShortHash(raw, hashSuffixLen), i, ext), ext, fmt.Sprintf("%s#%d", raw, i))
		}
		name = candidate
	}

	r.byRaw[raw] = name
	r.byName[name] = raw
	return name, nil
}

// Lookup returns the name already assigned to raw
func (r *Registry) Lookup(raw string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.byRaw[raw]
	return name, ok
}

// Len returns the number of assigned names
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byRaw)
}

func (r *Registry) isTaken(name string) bool {
	_, taken := r.byName[name]
	return taken
}
