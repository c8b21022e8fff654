package crawler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/ledger"
	"github.com/Sriram-PR/curricula-harvester/pkg/models"
)

// SiteDriver runs discovery and download for one site, sequentially
type SiteDriver struct {
	traverser     *Traverser
	downloader    *Downloader
	ledger        *ledger.Ledger
	seedDelay     time.Duration
	downloadDelay time.Duration
	log           *logrus.Entry
}

// NewSiteDriver creates a SiteDriver using the seed and download delays from cfg
func NewSiteDriver(traverser *Traverser, downloader *Downloader, cfg config.AppConfig, logger *logrus.Entry) *SiteDriver {
	return &SiteDriver{
		traverser:     traverser,
		downloader:    downloader,
		ledger:        downloader.ledger,
		seedDelay:     cfg.SeedDelay,
		downloadDelay: cfg.DownloadDelay,
		log:           logger,
	}
}

// Run traverses every seed at depth 0, deduplicates the discovered documents by URL
// and downloads them one at a time. Documents left pending by an interrupted run come
// first. Per-request failures only show up in the counts; result.Err is set when ctx
// is cancelled, and the documents not yet handled stay pending in the ledger.
func (s *SiteDriver) Run(ctx context.Context, site config.SiteConfig, maxDepth int) models.SiteResult {
	start := time.Now()
	result := models.SiteResult{SiteKey: site.Key}
	siteLog := s.log.WithField("site_key", site.Key)

	discovered := s.ledger.Pending(site.Key)
	if len(discovered) > 0 {
		siteLog.Infof("Resuming %d pending document(s) from the previous run", len(discovered))
	}

	for i, seed := range site.SeedURLs {
		if i > 0 {
			if err := sleepCtx(ctx, s.seedDelay); err != nil {
				return s.interrupted(result, discovered, site.Key, err, start)
			}
		}
		siteLog.WithField("seed", seed).Infof("Seed %d/%d", i+1, len(site.SeedURLs))
		docs, err := s.traverser.Traverse(ctx, seed, site.Key, 0, maxDepth)
		discovered = append(discovered, docs...)
		if err != nil {
			return s.interrupted(result, discovered, site.Key, err, start)
		}
	}

	unique := DedupeDocuments(discovered)
	result.Discovered = len(unique)
	s.ledger.SetPending(site.Key, unique)
	siteLog.Infof("Discovered %d unique document(s) (%d links before deduplication)", len(unique), len(discovered))

	pause := false
	for _, ref := range unique {
		if pause {
			if err := sleepCtx(ctx, s.downloadDelay); err != nil {
				result.Err = err
				break
			}
		}

		res := s.downloader.Download(ctx, ref, site.Key)
		if !res.Status.Succeeded() && ctx.Err() != nil {
			result.Err = ctx.Err()
			break
		}
		switch res.Status {
		case models.DownloadStored:
			result.Downloaded++
		case models.DownloadExists:
			result.Existing++
		default:
			result.Failed++
		}
		// A recorded failure is final; only interrupted downloads stay pending
		s.ledger.ResolvePending(site.Key, ref.URL)
		// Only pause after a request actually went out
		pause = res.Status != models.DownloadExists
	}

	result.Duration = time.Since(start)
	return result
}

// interrupted keeps what discovery found so far pending for the next run
func (s *SiteDriver) interrupted(result models.SiteResult, discovered []models.DocumentRef, siteKey string, err error, start time.Time) models.SiteResult {
	unique := DedupeDocuments(discovered)
	s.ledger.SetPending(siteKey, unique)
	result.Err = err
	result.Discovered = len(unique)
	result.Duration = time.Since(start)
	return result
}

// DedupeDocuments keeps the first DocumentRef for each URL, preserving order
func DedupeDocuments(refs []models.DocumentRef) []models.DocumentRef {
	seen := make(map[string]bool, len(refs))
	unique := make([]models.DocumentRef, 0, len(refs))
	for _, ref := range refs {
		if seen[ref.URL] {
			continue
		}
		seen[ref.URL] = true
		unique = append(unique, ref)
	}
	return unique
}
