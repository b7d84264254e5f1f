package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-mirror/pkg/log"
	"github.com/Sriram-PR/page-mirror/pkg/models"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

const (
	assetKeyPrefix = "asset:"   // Prefix for reference value keys in DB
	journalDirSfx  = "_journal" // Suffix of the per-page journal directory within stateDir

	maxJournalSlugLen = 100
)

// BadgerJournal implements AssetJournal using BadgerDB
type BadgerJournal struct {
	db   *badger.DB
	log  *logrus.Entry
	path string // Empty for in-memory journals

	mu        sync.Mutex // Serializes Record so order assignment and transition checks are atomic
	nextOrder int
}

// journalDirName turns a page slug into the on-disk journal directory name.
// Slugs are already filesystem-safe; anything outside [A-Za-z0-9_-] is mapped
// to "-" so a caller-supplied name cannot escape stateDir.
func journalDirName(pageSlug string) string {
	var sb strings.Builder
	for _, r := range pageSlug {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}
	name := sb.String()
	if len(name) > maxJournalSlugLen {
		name = name[:maxJournalSlugLen]
	}
	if strings.Trim(name, "-") == "" {
		name = "page"
	}
	return name + journalDirSfx
}

// NewBadgerJournal opens a fresh journal for one run.
// With an empty stateDir the journal lives in memory; otherwise it is stored
// under stateDir/<pageSlug>_journal, which is wiped first.
func NewBadgerJournal(stateDir, pageSlug string, logger *logrus.Entry) (*BadgerJournal, error) {
	journal := &BadgerJournal{log: logger}
	badgerLogger := log.NewBadgerLogrusAdapter(logger)

	var opts badger.Options
	if stateDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		journal.path = filepath.Join(stateDir, journalDirName(pageSlug))
		if err := os.RemoveAll(journal.path); err != nil {
			return nil, utils.NewStorageError("remove journal", journal.path, err)
		}
		if err := os.MkdirAll(journal.path, 0755); err != nil {
			return nil, utils.NewStorageError("create journal", journal.path, err)
		}
		opts = badger.DefaultOptions(journal.path)
	}
	opts = opts.WithLogger(badgerLogger).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open run journal: %w", utils.ErrDatabase, err)
	}
	journal.db = db

	if journal.path != "" {
		logger.Debugf("Run journal opened at %s", journal.path)
	}
	return journal, nil
}

// Path returns the on-disk location, or "" for an in-memory journal
func (j *BadgerJournal) Path() string {
	return j.path
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (j *BadgerJournal) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := j.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		j.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Record implements AssetJournal
func (j *BadgerJournal) Record(entry *models.AssetEntry) error {
	if entry == nil || entry.SourceValue == "" {
		return fmt.Errorf("%w: journal entry without source value", utils.ErrDatabase)
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	status, existing, err := j.Lookup(entry.SourceValue)
	if err != nil {
		return err
	}
	if status == models.AssetStatusNotFound {
		status = models.AssetStatusUnset
	}
	if status != entry.Status && !status.CanTransition(entry.Status) {
		return fmt.Errorf("%w: invalid transition %s -> %s for '%s'", utils.ErrDatabase, status, entry.Status, entry.SourceValue)
	}

	if existing != nil {
		entry.Order = existing.Order
	} else {
		entry.Order = j.nextOrder
		j.nextOrder++
	}
	entry.UpdatedAt = time.Now().UTC()

	key := []byte(assetKeyPrefix + entry.SourceValue)
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal AssetEntry for key '%s': %w", utils.ErrParsing, string(key), err)
	}

	if err := j.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	}); err != nil {
		return fmt.Errorf("%w: failed setting asset status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}

	j.log.WithFields(logrus.Fields{"value": entry.SourceValue, "status": entry.Status}).Trace("Journal updated")
	return nil
}

// Lookup implements AssetJournal
func (j *BadgerJournal) Lookup(sourceValue string) (models.AssetStatus, *models.AssetEntry, error) {
	status := models.AssetStatusNotFound
	var entry *models.AssetEntry
	key := []byte(assetKeyPrefix + sourceValue)

	errView := j.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting asset key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.AssetEntry
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("%w: corrupt journal entry '%s': %w", utils.ErrDatabase, string(key), err)
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if errView != nil {
		return models.AssetStatusDBError, nil, errView
	}
	return status, entry, nil
}

// Entries implements AssetJournal
func (j *BadgerJournal) Entries() ([]models.AssetEntry, error) {
	var entries []models.AssetEntry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(assetKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				var decoded models.AssetEntry
				if err := json.Unmarshal(val, &decoded); err != nil {
					return err
				}
				entries = append(entries, decoded)
				return nil
			}); err != nil {
				return fmt.Errorf("%w: scanning journal: %w", utils.ErrDatabase, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Order < entries[b].Order })
	return entries, nil
}

// CountByStatus implements AssetJournal
func (j *BadgerJournal) CountByStatus() (map[models.AssetStatus]int, error) {
	entries, err := j.Entries()
	if err != nil {
		return nil, err
	}
	counts := make(map[models.AssetStatus]int)
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts, nil
}

// WriteManifest implements AssetJournal.
// Columns: status, kind, source value, local path, size, sha256, error type.
func (j *BadgerJournal) WriteManifest(filePath string, meta ManifestMeta) error {
	entries, err := j.Entries()
	if err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return utils.NewStorageError("create manifest", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "# run_id\t%s\n# page_url\t%s\n# mirror_dir\t%s\n", meta.RunID, meta.PageURL, meta.MirrorDir)
	writer.WriteString("status\tkind\tsource_value\trelative_path\tsize_bytes\tsha256\terror_type\n")
	for _, e := range entries {
		fields := []string{
			e.Status.String(),
			e.Kind,
			tsvEscape(e.SourceValue),
			tsvEscape(e.RelativePath),
			strconv.FormatInt(e.SizeBytes, 10),
			e.SHA256,
			e.ErrorType,
		}
		writer.WriteString(strings.Join(fields, "\t") + "\n")
	}
	if err := writer.Flush(); err != nil {
		return utils.NewStorageError("write manifest", filePath, err)
	}

	j.log.Debugf("Wrote manifest with %d entries to %s", len(entries), filePath)
	return nil
}

// Close implements AssetJournal
func (j *BadgerJournal) Close() error {
	if j.db == nil || j.db.IsClosed() {
		return nil
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("%w: closing journal: %w", utils.ErrDatabase, err)
	}
	return nil
}

// tsvEscape keeps attribute values that contain tabs or newlines on one manifest row
func tsvEscape(s string) string {
	return strings.NewReplacer("\t", `\t`, "\n", `\n`, "\r", `\r`).Replace(s)
}
