package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/curricula-harvester/pkg/classify"
	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/crawler"
	"github.com/Sriram-PR/curricula-harvester/pkg/fetch"
	"github.com/Sriram-PR/curricula-harvester/pkg/ledger"
	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/storage"
)

// siteRunner runs one site to completion; *crawler.SiteDriver satisfies it
type siteRunner interface {
	Run(ctx context.Context, site config.SiteConfig, maxDepth int) models.SiteResult
}

// Summary is the outcome of a whole campaign
type Summary struct {
	RunID      string
	Sites      []models.SiteResult // Sites that were started, in configured order
	Discovered int                 // Total unique documents found across sites
	Downloaded int
	Existing   int
	Failed     int
	Cancelled  bool
	Manifest   string // Path of the written manifest, empty if it could not be written
	LedgerErr  error  // Set when the final ledger save failed
	Duration   time.Duration
}

// Campaign runs the configured sites against one shared ledger
type Campaign struct {
	appCfg config.AppConfig
	sites  []config.SiteConfig
	ledger *ledger.Ledger
	store  storage.LedgerStore
	runner siteRunner
	runID  string
	log    *logrus.Entry
}

// NewCampaign wires the HTTP client, host gate, fetcher and crawler components for a run.
// All sites share one host gate so that sites on the same server never overlap requests.
func NewCampaign(appCfg config.AppConfig, sites []config.SiteConfig, l *ledger.Ledger, store storage.LedgerStore, logger *logrus.Entry) *Campaign {
	runID := uuid.NewString()
	runLog := logger.WithField("run_id", runID)

	client := fetch.NewClient(appCfg.HTTPClientSettings, runLog)
	gate := fetch.NewHostGate(appCfg.RequestDelay, runLog)
	var robots *fetch.RobotsChecker
	if appCfg.RespectRobots {
		robots = fetch.NewRobotsChecker(client, gate, appCfg.UserAgent, runLog)
	}
	fetcher := fetch.NewFetcher(client, appCfg, gate, robots, runLog)
	classifier := classify.New(appCfg)

	traverser := crawler.NewTraverser(fetcher, classifier, l, appCfg, runLog)
	downloader := crawler.NewDownloader(fetcher, classifier, l, appCfg, runLog)

	return &Campaign{
		appCfg: appCfg,
		sites:  sites,
		ledger: l,
		store:  store,
		runner: crawler.NewSiteDriver(traverser, downloader, appCfg, runLog),
		runID:  runID,
		log:    runLog,
	}
}

// RunID identifies this campaign in logs
func (c *Campaign) RunID() string {
	return c.runID
}

// Run crawls every site, flushing the ledger after each one. Site failures and panics
// are recorded in the ledger's error log and never stop the other sites. On cancellation
// no further sites are started, the ledger is flushed and Run returns.
func (c *Campaign) Run(ctx context.Context) Summary {
	startTime := time.Now()
	concurrency := max(c.appCfg.SiteConcurrency, 1)
	c.log.Infof("Starting campaign over %d site(s) (site_concurrency=%d)", len(c.sites), concurrency)

	results := make([]models.SiteResult, len(c.sites))
	started := make([]bool, len(c.sites))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, site := range c.sites {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			results[i] = c.runSite(ctx, site)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{RunID: c.runID, Cancelled: ctx.Err() != nil}
	for i, r := range results {
		if !started[i] {
			continue
		}
		summary.Sites = append(summary.Sites, r)
		summary.Discovered += r.Discovered
		summary.Downloaded += r.Downloaded
		summary.Existing += r.Existing
		summary.Failed += r.Failed
	}

	if summary.Cancelled {
		c.log.Warn("Campaign cancelled, flushing ledger")
	}
	// Covers a cancelled run and retries an earlier failed save
	summary.LedgerErr = c.flush()

	manifestPath := filepath.Join(c.appCfg.StorageRoot, c.appCfg.ManifestFilename)
	manifest := crawler.BuildManifest(c.ledger.Documents(), c.appCfg.Sites, c.appCfg.StorageRoot, c.log)
	if err := crawler.WriteManifest(manifestPath, manifest, c.log); err != nil {
		c.log.Errorf("Failed to write manifest: %v", err)
	} else {
		summary.Manifest = manifestPath
	}

	summary.Duration = time.Since(startTime)
	c.logSummary(summary)
	return summary
}

// runSite runs one site, turning a panic into a site-level error entry, then flushes the ledger
func (c *Campaign) runSite(ctx context.Context, site config.SiteConfig) (result models.SiteResult) {
	siteLog := c.log.WithField("site_key", site.Key)
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			siteLog.WithField("stack", string(debug.Stack())).Errorf("Site run panicked: %v", r)
			result = models.SiteResult{
				SiteKey:  site.Key,
				Err:      fmt.Errorf("panic: %v", r),
				Duration: time.Since(startTime),
			}
			c.ledger.RecordError(models.ErrorEntry{Site: site.Key, Error: result.Err.Error(), Kind: "Internal_Panic"})
		}
		_ = c.flush()
	}()

	maxDepth := config.GetEffectiveMaxDepth(site, c.appCfg)
	siteLog.Infof("Starting site '%s' (max_depth=%d, %d seed(s))", site.DisplayName(), maxDepth, len(site.SeedURLs))

	result = c.runner.Run(ctx, site, maxDepth)
	if result.Err != nil && !errors.Is(result.Err, context.Canceled) && !errors.Is(result.Err, context.DeadlineExceeded) {
		c.ledger.RecordFailure("", site.Key, result.Err)
	}
	siteLog.Infof("Site finished: %d discovered, %d downloaded, %d existing, %d failed in %v",
		result.Discovered, result.Downloaded, result.Existing, result.Failed, result.Duration)
	return result
}

// flush persists the ledger; a failing write is logged and retried at the next flush
func (c *Campaign) flush() error {
	if err := c.ledger.Save(c.store); err != nil {
		c.log.Errorf("Failed to save ledger to %s: %v", c.store.Location(), err)
		return err
	}
	c.log.Debugf("Ledger saved to %s", c.store.Location())
	return nil
}

// logSummary logs a summary of all site results
func (c *Campaign) logSummary(s Summary) {
	c.log.Info("============================================")
	c.log.Infof("Campaign completed in %v", s.Duration)
	c.log.Info("Site Results:")

	failedSites := 0
	for _, r := range s.Sites {
		status := "SUCCESS"
		if r.Err != nil {
			status = "FAILED"
			failedSites++
		}
		c.log.Infof("  %s: %s - %d documents (%d new, %d existing, %d failed) in %v",
			r.SiteKey, status, r.Discovered, r.Downloaded, r.Existing, r.Failed, r.Duration)
		if r.Err != nil {
			c.log.Infof("    Error: %v", r.Err)
		}
	}

	c.log.Info("--------------------------------------------")
	c.log.Infof("Total: %d sites (%d success, %d failed), %d documents found",
		len(s.Sites), len(s.Sites)-failedSites, failedSites, s.Discovered)
	if s.Cancelled {
		c.log.Info("Campaign was cancelled before all sites finished")
	}
	c.log.Info("============================================")
}

// SelectSites returns the configured sites named by keys, in configured order.
// An empty keys list selects all sites.
func SelectSites(appCfg *config.AppConfig, keys []string) ([]config.SiteConfig, error) {
	if len(keys) == 0 {
		return appCfg.Sites, nil
	}
	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		if _, exists := appCfg.Site(key); !exists {
			return nil, fmt.Errorf("site '%s' not found. Available sites: %v", key, appCfg.SiteKeys())
		}
		wanted[key] = true
	}
	selected := make([]config.SiteConfig, 0, len(wanted))
	for _, s := range appCfg.Sites {
		if wanted[s.Key] {
			selected = append(selected, s)
		}
	}
	return selected, nil
}
