package models

import "time"

// PageRequest describes one mirror invocation
type PageRequest struct {
	URL       string // Absolute URL of the page to mirror
	OutputDir string // Directory receiving the HTML file and the asset directory
}

// Origin identifies a website, ignoring path
type Origin struct {
	Scheme string
	Host   string
}

// String renders the origin as scheme://host
func (o Origin) String() string {
	return o.Scheme + "://" + o.Host
}

// ContentKind hints how a resource payload should be treated
type ContentKind string

const (
	ContentBinary ContentKind = "binary"
	ContentText   ContentKind = "text"
)

// FetchMode selects the retrieval path for a resource
type FetchMode string

const (
	FetchModePage FetchMode = "page" // Reference carries its own host: fetched like the root page
	FetchModeRaw  FetchMode = "raw"  // Path-only reference: fetched as opaque bytes relative to the page
)

// ResourceKind is one of the element kinds whose references get localized.
// It carries everything the rewriter needs, so the kinds share one code path.
type ResourceKind struct {
	Name        string      // "image", "link" or "script"
	Tag         string      // Element tag name
	Attribute   string      // Reference attribute on that element
	ContentKind ContentKind // Payload hint
}

var (
	KindImage  = ResourceKind{Name: "image", Tag: "img", Attribute: "src", ContentKind: ContentBinary}
	KindLink   = ResourceKind{Name: "link", Tag: "link", Attribute: "href", ContentKind: ContentText}
	KindScript = ResourceKind{Name: "script", Tag: "script", Attribute: "src", ContentKind: ContentText}
)

// ResourceKinds lists the kinds in processing order
var ResourceKinds = []ResourceKind{KindImage, KindLink, KindScript}

// LocalAsset is one distinct reference value that was (or is being) localized
type LocalAsset struct {
	SourceValue   string      // Raw attribute value as authored
	Kind          string      // Name of the first ResourceKind that referenced it
	AbsoluteURL   string      // Resolved URL used for fetching
	LocalFilename string      // Derived, collision-free file name
	RelativePath  string      // "<mirrorDir>/<LocalFilename>", written into the markup
	FetchMode     FetchMode   // Page-like or raw retrieval
	ContentKind   ContentKind // Payload hint
	SizeBytes     int64       // Bytes written to disk
	SHA256        string      // Hex digest of the stored payload
	References    int         // Number of elements carrying SourceValue
}

// MirrorResult is the terminal artifact of a successful run
type MirrorResult struct {
	RunID               string
	PageURL             string
	HTMLFilePath        string
	MirrorDirectoryPath string
	ManifestPath        string            // Empty unless a manifest was written
	Assets              []LocalAsset      // Successfully localized assets, in discovery order
	Failed              map[string]string // Raw value -> error category (fail-open only)
	Foreign             int               // Distinct values left untouched as foreign
	Duration            time.Duration
}

// AssetEntry is the run journal record for one distinct reference value
type AssetEntry struct {
	SourceValue   string      `json:"source_value"`
	Kind          string      `json:"kind"`
	Status        AssetStatus `json:"status"`
	AbsoluteURL   string      `json:"absolute_url,omitempty"`
	LocalFilename string      `json:"local_filename,omitempty"`
	RelativePath  string      `json:"relative_path,omitempty"`
	ErrorType     string      `json:"error_type,omitempty"` // Error category (on failure)
	SizeBytes     int64       `json:"size_bytes,omitempty"`
	SHA256        string      `json:"sha256,omitempty"`
	References    int         `json:"references"`
	Order         int         `json:"order"` // Discovery position, assigned by the journal
	UpdatedAt     time.Time   `json:"updated_at"`
}
