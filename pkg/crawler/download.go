package crawler

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/curricula-harvester/pkg/classify"
	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/fetch"
	"github.com/Sriram-PR/curricula-harvester/pkg/ledger"
	"github.com/Sriram-PR/curricula-harvester/pkg/log"
	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// partSuffix marks a download in progress; the final name appears only after rename
const partSuffix = ".part"

// Downloader stores documents under <storage_root>/<site>/<filename>
type Downloader struct {
	fetcher     Fetcher
	classifier  *classify.Classifier
	ledger      *ledger.Ledger
	storageRoot string
	timeout     time.Duration
	maxBytes    int64
	retry       fetch.RetryPolicy
	log         *logrus.Entry
}

// NewDownloader creates a Downloader using the document timeout, size cap and retry settings from cfg
func NewDownloader(fetcher Fetcher, classifier *classify.Classifier, l *ledger.Ledger, cfg config.AppConfig, logger *logrus.Entry) *Downloader {
	return &Downloader{
		fetcher:     fetcher,
		classifier:  classifier,
		ledger:      l,
		storageRoot: cfg.StorageRoot,
		timeout:     cfg.DocumentTimeout,
		maxBytes:    cfg.MaxDocumentBytes,
		retry:       fetch.NewDownloadRetryPolicy(cfg),
		log:         logger,
	}
}

// FileName derives the local filename for a document URL: the last path segment when it
// carries a document extension, otherwise the URL fingerprint plus the primary extension.
func (d *Downloader) FileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		segment := path.Base(u.Path)
		if segment != "/" && segment != "." && d.classifier.IsDocumentPath(segment) {
			return utils.SanitizeFilename(segment)
		}
	}
	return ledger.Fingerprint(rawURL) + d.classifier.PrimaryExtension()
}

// Destination returns the path a document would be stored at
func (d *Downloader) Destination(rawURL, siteKey string) string {
	return filepath.Join(d.storageRoot, siteKey, d.FileName(rawURL))
}

// Download fetches ref unless it is already on disk. Failures are recorded in the
// ledger and returned as a DownloadFailure result; they are never fatal.
func (d *Downloader) Download(ctx context.Context, ref models.DocumentRef, siteKey string) models.DownloadResult {
	docLog := d.log.WithFields(logrus.Fields{"site_key": siteKey, "url": ref.URL})
	fp := ledger.Fingerprint(ref.URL)

	if rec, ok := d.ledger.Get(fp); ok && rec.IsDocument() && fileExists(rec.File) {
		docLog.WithField("action", log.ActionExists).Debugf("Already downloaded: %s", rec.File)
		return models.DownloadResult{Status: models.DownloadExists, Path: rec.File}
	}

	dest := d.Destination(ref.URL, siteKey)
	if fileExists(dest) {
		owner, owned := d.ledger.FileOwner(dest)
		if !owned || owner == ref.URL {
			d.adoptExisting(fp, dest, ref, siteKey, docLog)
			docLog.WithField("action", log.ActionExists).Infof("Exists: %s", dest)
			return models.DownloadResult{Status: models.DownloadExists, Path: dest}
		}
		// Same filename, different URL: keep both documents
		dest = disambiguate(dest, fp)
		if fileExists(dest) {
			d.adoptExisting(fp, dest, ref, siteKey, docLog)
			return models.DownloadResult{Status: models.DownloadExists, Path: dest}
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return d.fail(ctx, ref, siteKey, fmt.Errorf("%w: creating directory: %w", utils.ErrFilesystem, err), docLog)
	}

	docLog.WithField("action", log.ActionDownload).Infof("Downloading -> %s", dest)

	var page *fetch.Page
	var digest string
	part := dest + partSuffix
	err := d.retry.Do(ctx, docLog, func(attempt int) error {
		var errAttempt error
		page, digest, errAttempt = d.fetchToPart(ctx, ref.URL, part)
		return errAttempt
	})
	if err != nil {
		_ = os.Remove(part)
		return d.fail(ctx, ref, siteKey, err, docLog)
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return d.fail(ctx, ref, siteKey, fmt.Errorf("%w: renaming into place: %w", utils.ErrFilesystem, err), docLog)
	}

	d.ledger.Record(fp, models.VisitRecord{
		URL:    ref.URL,
		Site:   siteKey,
		Time:   time.Now(),
		Status: page.Status,
		File:   dest,
		Size:   page.Size,
		Text:   ref.Text,
		SHA256: digest,

		SourcePage: ref.SourcePage,
	})
	docLog.WithFields(logrus.Fields{"size": page.Size, "file": dest}).Info("Stored")
	return models.DownloadResult{Status: models.DownloadStored, Path: dest}
}

// fetchToPart streams the document into part, hashing it on the way, and syncs it to disk
func (d *Downloader) fetchToPart(ctx context.Context, rawURL, part string) (*fetch.Page, string, error) {
	f, err := os.Create(part)
	if err != nil {
		return nil, "", fmt.Errorf("%w: creating '%s': %w", utils.ErrFilesystem, part, err)
	}

	tee := utils.NewTeeSHA256(f)
	page, err := d.fetcher.FetchTo(ctx, rawURL, d.timeout, d.maxBytes, fetch.FileWriter(tee))
	if err != nil {
		_ = f.Close()
		return nil, "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("%w: syncing '%s': %w", utils.ErrFilesystem, part, err)
	}
	if err := f.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, part, err)
	}
	return page, tee.Sum(), nil
}

// adoptExisting records a file found on disk that the ledger does not know yet
func (d *Downloader) adoptExisting(fp, dest string, ref models.DocumentRef, siteKey string, docLog *logrus.Entry) {
	if d.ledger.Has(fp) {
		if rec, _ := d.ledger.Get(fp); rec.IsDocument() {
			return
		}
	}
	info, err := os.Stat(dest)
	if err != nil {
		return
	}
	digest, err := utils.CalculateFileSHA256(dest)
	if err != nil {
		docLog.Warnf("Could not hash existing file '%s': %v", dest, err)
	}
	d.ledger.Record(fp, models.VisitRecord{
		URL:    ref.URL,
		Site:   siteKey,
		Time:   info.ModTime(),
		File:   dest,
		Size:   info.Size(),
		Text:   ref.Text,
		SHA256: digest,

		SourcePage: ref.SourcePage,
	})
}

func (d *Downloader) fail(ctx context.Context, ref models.DocumentRef, siteKey string, err error, docLog *logrus.Entry) models.DownloadResult {
	if ctx.Err() != nil {
		// Interrupted, not failed: the next run retries this document
		return models.DownloadResult{Status: models.DownloadFailure, Err: ctx.Err()}
	}
	d.ledger.RecordFailure(ref.URL, siteKey, err)
	docLog.WithField("action", log.ActionError).Warnf("Download failed: %v", err)
	return models.DownloadResult{Status: models.DownloadFailure, Err: err}
}

// disambiguate appends the fingerprint to the file stem
func disambiguate(dest, fp string) string {
	ext := filepath.Ext(dest)
	return strings.TrimSuffix(dest, ext) + "-" + fp + ext
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
