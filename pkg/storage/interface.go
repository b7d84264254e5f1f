package storage

import "github.com/Sriram-PR/page-mirror/pkg/models"

// AssetJournal records the state of every distinct reference value seen during one run
type AssetJournal interface {
	// Record stores entry, keyed by entry.SourceValue.
	// The status change must follow models.AssetStatus.CanTransition; re-recording
	// the same status is allowed and updates the other fields.
	Record(entry *models.AssetEntry) error

	// Lookup returns the status and entry for a value.
	// Status is AssetStatusNotFound when the value was never recorded and
	// AssetStatusDBError (with the error) when the read failed.
	Lookup(sourceValue string) (models.AssetStatus, *models.AssetEntry, error)

	// Entries returns every recorded entry in discovery order
	Entries() ([]models.AssetEntry, error)

	// CountByStatus tallies entries per status
	CountByStatus() (map[models.AssetStatus]int, error)

	// WriteManifest writes a TSV summary of all entries to filePath
	WriteManifest(filePath string, meta ManifestMeta) error

	// Close releases the journal; an on-disk journal keeps its files for inspection
	Close() error
}

// ManifestMeta is written as comment lines at the top of a manifest
type ManifestMeta struct {
	RunID     string
	PageURL   string
	MirrorDir string
}
