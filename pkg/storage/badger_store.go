package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/curricula-harvester/pkg/log"
	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// Key layout: crawled:<fingerprint>, error:<zero-padded seq> and pending:<site key>
// hold JSON, meta:last_run holds an RFC 3339 timestamp
const (
	crawledKeyPrefix = "crawled:"
	errorKeyPrefix   = "error:"
	pendingKeyPrefix = "pending:"
	lastRunKey       = "meta:last_run"
	errorSeqFormat   = "error:%010d"
)

// BadgerStore mirrors the ledger in a BadgerDB directory.
// Write only sends keys whose value changed since the last Read or Write.
type BadgerStore struct {
	db   *badger.DB
	path string
	log  *logrus.Entry

	mu     sync.Mutex
	stored map[string][]byte // Values known to be in the database, meta:last_run excluded
}

// NewBadgerStore opens (or creates) the ledger database at dbPath
func NewBadgerStore(dbPath string, logger *logrus.Entry) (*BadgerStore, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create ledger directory %s: %w", utils.ErrStorageUnwritable, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger ledger at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	logger.Infof("Ledger database opened at: %s", dbPath)
	return &BadgerStore{db: db, path: dbPath, log: logger, stored: make(map[string][]byte)}, nil
}

// Location implements LedgerStore
func (s *BadgerStore) Location() string {
	return s.path
}

// Read implements LedgerStore
func (s *BadgerStore) Read() (*models.LedgerSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := models.NewLedgerSnapshot()
	stored := make(map[string][]byte)
	exists := false

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			exists = true

			errValue := item.Value(func(val []byte) error {
				switch {
				case strings.HasPrefix(key, crawledKeyPrefix):
					var rec models.VisitRecord
					if err := json.Unmarshal(val, &rec); err != nil {
						return fmt.Errorf("key '%s': %w", key, err)
					}
					snap.Crawled[strings.TrimPrefix(key, crawledKeyPrefix)] = rec
					stored[key] = bytes.Clone(val)
				case strings.HasPrefix(key, errorKeyPrefix):
					// Keys iterate in lexical order, which is sequence order thanks to zero padding
					var entry models.ErrorEntry
					if err := json.Unmarshal(val, &entry); err != nil {
						return fmt.Errorf("key '%s': %w", key, err)
					}
					snap.Errors = append(snap.Errors, entry)
					stored[key] = bytes.Clone(val)
				case strings.HasPrefix(key, pendingKeyPrefix):
					var refs []models.DocumentRef
					if err := json.Unmarshal(val, &refs); err != nil {
						return fmt.Errorf("key '%s': %w", key, err)
					}
					snap.Pending[strings.TrimPrefix(key, pendingKeyPrefix)] = refs
					stored[key] = bytes.Clone(val)
				case key == lastRunKey:
					ts, err := time.Parse(time.RFC3339Nano, string(val))
					if err != nil {
						return fmt.Errorf("key '%s': %w", key, err)
					}
					snap.LastRun = &ts
				default:
					s.log.Debugf("Ignoring unknown ledger key '%s'", key)
				}
				return nil
			})
			if errValue != nil {
				return fmt.Errorf("%w: %w", utils.ErrCorruptLedger, errValue)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, utils.ErrCorruptLedger) {
			return nil, true, err
		}
		return nil, exists, fmt.Errorf("%w: reading ledger: %w", utils.ErrDatabase, err)
	}
	s.stored = stored
	return snap, exists, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Write implements LedgerStore. Changed keys go through a WriteBatch, which splits
// the work into as many transactions as needed, so the ledger size is not bounded by
// a single transaction. meta:last_run is written last and only after the batch has
// been flushed.
func (s *BadgerStore) Write(snap *models.LedgerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	changed, removed := 0, 0
	for key, val := range want {
		if prev, ok := s.stored[key]; ok && bytes.Equal(prev, val) {
			continue
		}
		if err := wb.Set([]byte(key), val); err != nil {
			return fmt.Errorf("%w: writing ledger key '%s': %w", utils.ErrDatabase, key, err)
		}
		changed++
	}
	for key := range s.stored {
		if _, ok := want[key]; ok {
			continue
		}
		if err := wb.Delete([]byte(key)); err != nil {
			return fmt.Errorf("%w: deleting ledger key '%s': %w", utils.ErrDatabase, key, err)
		}
		removed++
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: writing ledger snapshot: %w", utils.ErrDatabase, err)
	}
	s.stored = want

	if snap.LastRun != nil {
		err := s.dbUpdate(func(txn *badger.Txn) error {
			return txn.Set([]byte(lastRunKey), []byte(snap.LastRun.Format(time.RFC3339Nano)))
		})
		if err != nil {
			return fmt.Errorf("%w: writing last_run: %w", utils.ErrDatabase, err)
		}
	}

	s.log.Debugf("Ledger snapshot written (%d records, %d errors; %d keys changed, %d removed)",
		len(snap.Crawled), len(snap.Errors), changed, removed)
	return nil
}

// encodeSnapshot returns the key/value form of snap, without meta:last_run
func encodeSnapshot(snap *models.LedgerSnapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(snap.Crawled)+len(snap.Errors)+len(snap.Pending))
	for fp, rec := range snap.Crawled {
		val, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding record %s: %w", utils.ErrParsing, fp, err)
		}
		out[crawledKeyPrefix+fp] = val
	}
	for i, e := range snap.Errors {
		val, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding error entry %d: %w", utils.ErrParsing, i, err)
		}
		out[fmt.Sprintf(errorSeqFormat, i)] = val
	}
	for site, refs := range snap.Pending {
		if len(refs) == 0 {
			continue
		}
		val, err := json.Marshal(refs)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding pending documents of %s: %w", utils.ErrParsing, site, err)
		}
		out[pendingKeyPrefix+site] = val
	}
	return out, nil
}

// Close implements LedgerStore
func (s *BadgerStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.log.Info("Closing ledger database...")
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing ledger database: %w", utils.ErrDatabase, err)
	}
	return nil
}
