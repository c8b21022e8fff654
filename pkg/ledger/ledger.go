package ledger

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/storage"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// badgerDirName is the database directory used by the badger backend inside state_dir
const badgerDirName = "crawl_log_db"

// Ledger records visited URLs, downloaded documents and failures.
// All methods are safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	crawled map[string]models.VisitRecord
	files   map[string]string // Local path -> URL of the document stored there
	errors  []models.ErrorEntry
	pending map[string][]models.DocumentRef
	lastRun *time.Time

	saveMu sync.Mutex // Serializes Save so snapshots reach storage in order
}

// Stats is a point-in-time summary of the ledger
type Stats struct {
	Visited   int // All fingerprints (pages and documents)
	Documents int
	Errors    int
	Pending   int // Discovered documents still waiting for download, all sites
	LastRun   *time.Time
}

// New returns an empty ledger
func New() *Ledger {
	return &Ledger{
		crawled: make(map[string]models.VisitRecord),
		files:   make(map[string]string),
		pending: make(map[string][]models.DocumentRef),
	}
}

// OpenStore creates the storage backend selected by the configuration
func OpenStore(cfg config.AppConfig, logger *logrus.Entry) (storage.LedgerStore, error) {
	switch cfg.LedgerBackend {
	case config.LedgerBackendBadger:
		return storage.NewBadgerStore(filepath.Join(cfg.StateDir, badgerDirName), logger)
	case config.LedgerBackendFile, "":
		return storage.NewFileStore(filepath.Join(cfg.StateDir, cfg.LedgerFilename)), nil
	default:
		return nil, fmt.Errorf("%w: unknown ledger_backend '%s'", utils.ErrConfigValidation, cfg.LedgerBackend)
	}
}

// Load reads the ledger from store. A missing ledger yields an empty one;
// an unreadable ledger is returned as an error so the caller can abort.
func Load(store storage.LedgerStore) (*Ledger, error) {
	snap, exists, err := store.Read()
	if err != nil {
		return nil, err
	}
	l := New()
	if !exists || snap == nil {
		return l, nil
	}
	for fp, rec := range snap.Crawled {
		l.record(fp, rec)
	}
	l.errors = append(l.errors, snap.Errors...)
	for site, refs := range snap.Pending {
		if len(refs) > 0 {
			l.pending[site] = append([]models.DocumentRef(nil), refs...)
		}
	}
	if snap.LastRun != nil {
		ts := *snap.LastRun
		l.lastRun = &ts
	}
	return l, nil
}

// Save stamps last_run and writes the current state to store
func (l *Ledger) Save(store storage.LedgerStore) error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	now := time.Now()
	l.lastRun = &now
	l.mu.Unlock()

	return store.Write(l.Snapshot())
}

// Snapshot returns a deep copy of the ledger state
func (l *Ledger) Snapshot() *models.LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := models.NewLedgerSnapshot()
	for fp, rec := range l.crawled {
		snap.Crawled[fp] = rec
	}
	snap.Errors = append(snap.Errors, l.errors...)
	for site, refs := range l.pending {
		snap.Pending[site] = append([]models.DocumentRef(nil), refs...)
	}
	if l.lastRun != nil {
		ts := *l.lastRun
		snap.LastRun = &ts
	}
	return snap
}

// Has reports whether a fingerprint was already visited or downloaded
func (l *Ledger) Has(fp string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.crawled[fp]
	return ok
}

// Get returns the record stored for a fingerprint
func (l *Ledger) Get(fp string) (models.VisitRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.crawled[fp]
	return rec, ok
}

// Record stores rec under fp, replacing any previous record
func (l *Ledger) Record(fp string, rec models.VisitRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(fp, rec)
}

// record must be called with mu held
func (l *Ledger) record(fp string, rec models.VisitRecord) {
	if prev, ok := l.crawled[fp]; ok && prev.File != "" && l.files[prev.File] == prev.URL {
		delete(l.files, prev.File)
	}
	l.crawled[fp] = rec
	if rec.File != "" {
		l.files[rec.File] = rec.URL
	}
}

// Forget removes the record stored under fp, so the URL is visited again
func (l *Ledger) Forget(fp string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.crawled[fp]; ok && prev.File != "" && l.files[prev.File] == prev.URL {
		delete(l.files, prev.File)
	}
	delete(l.crawled, fp)
}

// SetPending replaces the documents a site still has to download.
// An empty refs clears the list.
func (l *Ledger) SetPending(siteKey string, refs []models.DocumentRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(refs) == 0 {
		delete(l.pending, siteKey)
		return
	}
	l.pending[siteKey] = append([]models.DocumentRef(nil), refs...)
}

// Pending returns a copy of the documents a site still has to download
func (l *Ledger) Pending(siteKey string) []models.DocumentRef {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.DocumentRef(nil), l.pending[siteKey]...)
}

// ResolvePending drops a document from a site's pending list once it was handled
func (l *Ledger) ResolvePending(siteKey, url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	refs := l.pending[siteKey]
	for i, ref := range refs {
		if ref.URL == url {
			refs = append(refs[:i:i], refs[i+1:]...)
			break
		}
	}
	if len(refs) == 0 {
		delete(l.pending, siteKey)
		return
	}
	l.pending[siteKey] = refs
}

// RecordError appends to the error log. Entries are never deduplicated.
func (l *Ledger) RecordError(entry models.ErrorEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, entry)
}

// RecordFailure is a convenience wrapper that categorizes err before appending it
func (l *Ledger) RecordFailure(url, siteKey string, err error) {
	l.RecordError(models.ErrorEntry{
		URL:   url,
		Site:  siteKey,
		Error: err.Error(),
		Kind:  utils.CategorizeError(err),
	})
}

// Stats returns current counts
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Visited: len(l.crawled), Errors: len(l.errors)}
	for _, refs := range l.pending {
		s.Pending += len(refs)
	}
	for _, rec := range l.crawled {
		if rec.IsDocument() {
			s.Documents++
		}
	}
	if l.lastRun != nil {
		ts := *l.lastRun
		s.LastRun = &ts
	}
	return s
}

// Documents returns all records with a local file, sorted by site then path
func (l *Ledger) Documents() []models.VisitRecord {
	l.mu.RLock()
	docs := make([]models.VisitRecord, 0, len(l.crawled))
	for _, rec := range l.crawled {
		if rec.IsDocument() {
			docs = append(docs, rec)
		}
	}
	l.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Site != docs[j].Site {
			return docs[i].Site < docs[j].Site
		}
		return docs[i].File < docs[j].File
	})
	return docs
}

// Errors returns a copy of the full error log in insertion order
func (l *Ledger) Errors() []models.ErrorEntry {
	return l.ErrorsSince(time.Time{})
}

// ErrorsSince returns error log entries recorded at or after since
func (l *Ledger) ErrorsSince(since time.Time) []models.ErrorEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.ErrorEntry, 0, len(l.errors))
	for _, e := range l.errors {
		if !e.Time.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// FileOwner returns the URL of the document recorded under a local path
func (l *Ledger) FileOwner(path string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	url, ok := l.files[path]
	return url, ok
}
