package models

import "time"

// VisitRecord is the ledger entry for a fetched page or a downloaded document
type VisitRecord struct {
	URL    string    `json:"url"`
	Site   string    `json:"site"`             // Site key the URL was reached from
	Time   time.Time `json:"time"`             // When the fetch or download finished
	Status int       `json:"status,omitempty"` // HTTP status of the page fetch or download
	File   string    `json:"file,omitempty"`   // Local path (documents only)
	Size   int64     `json:"size,omitempty"`   // Byte size (documents only)
	Text   string    `json:"text,omitempty"`   // Anchor text the document was linked with
	SHA256 string    `json:"sha256,omitempty"` // Content hash (documents only)

	SourcePage string `json:"source_page,omitempty"` // Page the document was linked from
}

// IsDocument reports whether the record describes a downloaded file
func (r VisitRecord) IsDocument() bool {
	return r.File != ""
}

// ErrorEntry is one append-only element of the ledger's error log.
// URL is set for request failures (with the Site they were reached from);
// Site alone marks the failure of a whole site run.
type ErrorEntry struct {
	URL   string    `json:"url,omitempty"`
	Site  string    `json:"site,omitempty"`
	Error string    `json:"error"`
	Kind  string    `json:"kind,omitempty"` // utils.CategorizeError category
	Time  time.Time `json:"time"`
}

// DiscoveredLink is an outbound link found on a page
type DiscoveredLink struct {
	URL        string // Absolute URL, fragment removed
	Text       string // Anchor text, whitespace-trimmed
	SourcePage string // URL of the page the link was found on
}

// DocumentRef is a discovered link classified as a downloadable document
type DocumentRef struct {
	URL        string `json:"url"`
	Text       string `json:"text,omitempty"`
	SourcePage string `json:"source_page,omitempty"`
}

// Ref converts a document link into a DocumentRef
func (l DiscoveredLink) Ref() DocumentRef {
	return DocumentRef{URL: l.URL, Text: l.Text, SourcePage: l.SourcePage}
}

// DownloadResult is returned by the downloader
type DownloadResult struct {
	Status DownloadStatus
	Path   string // Destination path (set for stored and exists)
	Err    error  // Set for failure
}

// SiteResult summarises the run of one site
type SiteResult struct {
	SiteKey    string
	Discovered int // Unique DocumentRefs after deduplication
	Downloaded int // Newly stored this run
	Existing   int // Already present
	Failed     int
	Err        error // Unexpected failure of the site run (panic, cancellation)
	Duration   time.Duration
}

// DocumentMetadata describes one harvested document for downstream extraction.
type DocumentMetadata struct {
	Site       string    `yaml:"site"`
	SiteName   string    `yaml:"site_name,omitempty"`
	Path       string    `yaml:"path"`
	SourceURL  string    `yaml:"source_url"`
	SourceText string    `yaml:"source_text,omitempty"`
	SourcePage string    `yaml:"source_page,omitempty"`
	Size       int64     `yaml:"size"`
	SHA256     string    `yaml:"sha256,omitempty"`
	FetchedAt  time.Time `yaml:"fetched_at"`
}

// Manifest is the full listing written next to the harvested documents.
type Manifest struct {
	GeneratedAt    time.Time          `yaml:"generated_at"`
	StorageRoot    string             `yaml:"storage_root"`
	TotalDocuments int                `yaml:"total_documents"`
	Documents      []DocumentMetadata `yaml:"documents"`
}

// LedgerSnapshot is the persisted form of the crawl ledger
type LedgerSnapshot struct {
	Crawled map[string]VisitRecord `json:"crawled"`
	Errors  []ErrorEntry           `json:"errors"`
	LastRun *time.Time             `json:"last_run"`

	// Pending holds, per site key, documents discovered but not yet downloaded
	Pending map[string][]DocumentRef `json:"pending,omitempty"`
}

// NewLedgerSnapshot returns an empty snapshot with non-nil collections
func NewLedgerSnapshot() *LedgerSnapshot {
	return &LedgerSnapshot{
		Crawled: make(map[string]VisitRecord),
		Errors:  []ErrorEntry{},
		Pending: make(map[string][]DocumentRef),
	}
}
