// Package ledger is the append-only transaction record store.
package ledger

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tonex/tonex/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	DefaultDir   = "./wal/ledger"
	segmentLimit = 1000
	maxSegments  = 100

	entryKeyPrefix = "ledger_entry_"
)

// WALStore persists ledger entries in a WAL. Entries are immutable once
// written; the store keeps a recovered in-memory index for queries.
type WALStore struct {
	wal     *gowal.Wal
	mu      sync.RWMutex
	records []domain.LedgerRecord
}

// NewWALStore initializes a WAL-backed ledger under the provided directory
// and recovers the query index from existing segments.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "entry_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	store := &WALStore{wal: wal}

	var pos uint64
	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, entryKeyPrefix) {
			continue
		}
		var entry domain.LedgerEntry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			return nil, errors.Wrap(err, "decode ledger entry")
		}
		pos++
		store.records = append(store.records, domain.LedgerRecord{Index: pos, Entry: entry})
	}

	return store, nil
}

// Append writes the entry and returns its id. Missing id and timestamp are
// filled in; nothing else is touched, and the entry is never changed after.
func (s *WALStore) Append(entry domain.LedgerEntry) (string, error) {
	if s == nil || s.wal == nil {
		return "", errors.New("ledger store is not initialized")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return "", errors.Wrap(err, "marshal ledger entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, entryKeyPrefix+entry.ID, payload); err != nil {
		return "", errors.Wrap(err, "write ledger entry")
	}

	s.records = append(s.records, domain.LedgerRecord{Index: nextIndex, Entry: entry})
	return entry.ID, nil
}

// FindByParticipant returns entries the account initiated or received,
// newest first. An empty kind matches every kind.
func (s *WALStore) FindByParticipant(accountID string, kind domain.EntryKind) ([]domain.LedgerEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("ledger store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.LedgerEntry
	for i := len(s.records) - 1; i >= 0; i-- {
		entry := s.records[i].Entry
		if !entry.Participated(accountID) {
			continue
		}
		if kind != "" && entry.Kind != kind {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
