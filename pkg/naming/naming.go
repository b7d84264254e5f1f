package naming

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

const (
	// MaxFilenameBytes keeps derived names well below common filesystem limits (255)
	MaxFilenameBytes = 200
	// DefaultExtension is used when a reference has no usable extension
	DefaultExtension = ".html"
	// MirrorDirSuffix is appended to the page base name to form the asset directory
	MirrorDirSuffix = "_files"

	hashSuffixLen = 8
)

var extensionRegex = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

// Slugify maps every rune that is not an ASCII letter or digit to exactly one "-".
// Runs are not collapsed, so the output rune count equals the input rune count.
func Slugify(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// SiteName is the slug of the page host: "example.test" -> "example-test"
func SiteName(page *url.URL) string {
	return Slugify(page.Host)
}

// BaseName is the slug of host and path: "https://example.test/page" -> "example-test-page"
func BaseName(page *url.URL) string {
	return Slugify(page.Host + page.Path)
}

// MirrorDirName names the directory holding the page's assets
func MirrorDirName(page *url.URL) string {
	return BaseName(page) + MirrorDirSuffix
}

// HTMLFileName names the rewritten page file
func HTMLFileName(page *url.URL) string {
	return BaseName(page) + ".html"
}

// DeriveFilename computes the local file name for a reference found on page.
// The result depends only on its inputs. Collisions between distinct references
// are resolved by Registry, not here.
func DeriveFilename(page *url.URL, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", &utils.MalformedURLError{Raw: raw, Err: err}
	}

	ext := path.Ext(u.Path)
	if !extensionRegex.MatchString(ext) {
		ext = ""
	}

	stem, _, _ := strings.Cut(trimmed, "#")
	if ext != "" {
		// Remove the extension from the path part, leaving any query in place
		pathPart, query, hasQuery := strings.Cut(stem, "?")
		stem = strings.TrimSuffix(pathPart, ext)
		if hasQuery {
			stem += "?" + query
		}
	} else {
		ext = DefaultExtension
	}

	var name string
	if u.Scheme != "" {
		_, rest, _ := strings.Cut(stem, ":")
		stem = strings.TrimPrefix(rest, "//")
		name = Slugify(stem) + ext
	} else {
		name = SiteName(page) + Slugify(stem) + ext
	}

	return truncate(name, ext, raw), nil
}

// truncate shortens over-long names, keeping ext and appending a hash of raw
func truncate(name, ext, raw string) string {
	if len(name) <= MaxFilenameBytes {
		return name
	}
	suffix := "-" + utils.ShortHash(raw, hashSuffixLen) + ext
	// Slugs are ASCII, so byte slicing is safe
	return name[:MaxFilenameBytes-len(suffix)] + suffix
}

// splitExt splits name into stem and extension (including the dot)
func splitExt(name string) (string, string) {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
