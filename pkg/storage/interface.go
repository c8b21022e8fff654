package storage

import "github.com/Sriram-PR/curricula-harvester/pkg/models"

// LedgerStore persists ledger snapshots
type LedgerStore interface {
	// Read loads the last saved snapshot.
	// exists is false when nothing was saved yet; a store that exists but
	// cannot be decoded returns an error wrapping utils.ErrCorruptLedger.
	Read() (snap *models.LedgerSnapshot, exists bool, err error)

	// Write replaces the stored snapshot atomically
	Write(snap *models.LedgerSnapshot) error

	// Location returns a human-readable description of where the ledger lives
	Location() string

	Close() error
}
