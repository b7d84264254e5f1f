package naming

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

func TestRegistry_SameValueSameName(t *testing.T) {
	reg := NewRegistry(pageURL(t, "https://example.test/page"))

	a, err := reg.Assign("/assets/a.png")
	require.NoError(t, err)
	b, err := reg.Assign("/assets/a.png")
	require.NoError(t, err)

	assert.Equal(t, "example-test-assets-a.png", a)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_CollisionGetsHashSuffix(t *testing.T) {
	reg := NewRegistry(pageURL(t, "https://example.test/page"))

	// "/a.b.png" and "/a-b.png" slug to the same name
	first, err := reg.Assign("/a.b.png")
	require.NoError(t, err)
	second, err := reg.Assign("/a-b.png")
	require.NoError(t, err)

	assert.Equal(t, "example-test-a-b.png", first)
	assert.Equal(t, "example-test-a-b-"+utils.ShortHash("/a-b.png", 8)+".png", second)
	assert.NotEqual(t, first, second)
}

func TestRegistry_CollisionOrderIsDocumentOrder(t *testing.T) {
	page := pageURL(t, "https://example.test/page")

	r1 := NewRegistry(page)
	_, _ = r1.Assign("/a.b.png")
	n1, _ := r1.Assign("/a-b.png")

	r2 := NewRegistry(page)
	_, _ = r2.Assign("/a.b.png")
	n2, _ := r2.Assign("/a-b.png")

	assert.Equal(t, n1, n2, "same assignment order yields same names")
}

func TestRegistry_NoDuplicateNames(t *testing.T) {
	reg := NewRegistry(pageURL(t, "https://example.test/page"))
	seen := make(map[string]string)

	values := []string{"/x.js", "/x-js", "/x.js?", "/x_js", "/x.js#a", "x.js", "https://example.test/x.js"}
	for _, v := range values {
		name, err := reg.Assign(v)
		require.NoError(t, err)
		if prev, dup := seen[name]; dup {
			t.Fatalf("values %q and %q share name %q", prev, v, name)
		}
		seen[name] = v
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry(pageURL(t, "https://example.test/page"))
	_, ok := reg.Lookup("/a.png")
	assert.False(t, ok)

	name, err := reg.Assign("/a.png")
	require.NoError(t, err)
	got, ok := reg.Lookup("/a.png")
	assert.True(t, ok)
	assert.Equal(t, name, got)
}

func TestRegistry_ConcurrentAssign(t *testing.T) {
	reg := NewRegistry(pageURL(t, "https://example.test/page"))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.Assign(fmt.Sprintf("/img/%d.png", i%10))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, reg.Len())
}

func TestRegistry_MalformedNotReserved(t *testing.T) {
	reg := NewRegistry(pageURL(t, "https://example.test/page"))
	_, err := reg.Assign("http://[::1")
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}
