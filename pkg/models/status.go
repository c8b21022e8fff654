package models

// DownloadStatus is the outcome of a single document download
type DownloadStatus string

const (
	DownloadStored  DownloadStatus = "stored"  // Written to disk by this call
	DownloadExists  DownloadStatus = "exists"  // Already on disk or in the ledger, no network
	DownloadFailure DownloadStatus = "failure" // Recorded in the error log
)

// String implements fmt.Stringer for logging
func (s DownloadStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// Succeeded returns true when the document is available on disk
func (s DownloadStatus) Succeeded() bool {
	return s == DownloadStored || s == DownloadExists
}
