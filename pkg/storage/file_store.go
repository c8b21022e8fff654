package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// FileStore keeps the ledger as a single indented JSON document
type FileStore struct {
	path string
}

// NewFileStore creates a JSON ledger store at path. The file is not touched until Read or Write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Location implements LedgerStore
func (s *FileStore) Location() string {
	return s.path
}

// Read implements LedgerStore
func (s *FileStore) Read() (*models.LedgerSnapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: reading ledger '%s': %w", utils.ErrFilesystem, s.path, err)
	}

	snap := models.NewLedgerSnapshot()
	if errJSON := json.Unmarshal(data, snap); errJSON != nil {
		// Logs written by the earlier crawler use naive ISO timestamps and a "land" key
		legacy, errLegacy := decodeLegacySnapshot(data)
		if errLegacy != nil {
			return nil, true, fmt.Errorf("%w: '%s': %w", utils.ErrCorruptLedger, s.path, errJSON)
		}
		snap = legacy
	}
	if snap.Crawled == nil {
		snap.Crawled = make(map[string]models.VisitRecord)
	}
	if snap.Errors == nil {
		snap.Errors = []models.ErrorEntry{}
	}
	if snap.Pending == nil {
		snap.Pending = make(map[string][]models.DocumentRef)
	}
	return snap, true, nil
}

// Write implements LedgerStore. The snapshot is written to a temporary file in the
// same directory, synced, and renamed over the target.
func (s *FileStore) Write(snap *models.LedgerSnapshot) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating ledger directory '%s': %w", utils.ErrFilesystem, dir, err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding ledger: %w", utils.ErrParsing, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp ledger file: %w", utils.ErrFilesystem, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: writing temp ledger file: %w", utils.ErrFilesystem, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: syncing temp ledger file: %w", utils.ErrFilesystem, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp ledger file: %w", utils.ErrFilesystem, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing ledger '%s': %w", utils.ErrFilesystem, s.path, err)
	}
	return nil
}

// Close implements LedgerStore
func (s *FileStore) Close() error {
	return nil
}
