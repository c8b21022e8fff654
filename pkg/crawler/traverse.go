package crawler

import (
	"context"
	"mime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/curricula-harvester/pkg/classify"
	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/ledger"
	"github.com/Sriram-PR/curricula-harvester/pkg/log"
	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/parse"
)

// Traverser walks a site's pages depth-first, collecting document links.
// The ledger is the visited set: a page is fetched at most once per ledger lifetime.
type Traverser struct {
	fetcher     Fetcher
	classifier  *classify.Classifier
	ledger      *ledger.Ledger
	pageTimeout time.Duration
	linkDelay   time.Duration
	log         *logrus.Entry
}

// NewTraverser creates a Traverser using the page timeout and link delay from cfg
func NewTraverser(fetcher Fetcher, classifier *classify.Classifier, l *ledger.Ledger, cfg config.AppConfig, logger *logrus.Entry) *Traverser {
	return &Traverser{
		fetcher:     fetcher,
		classifier:  classifier,
		ledger:      l,
		pageTimeout: cfg.PageTimeout,
		linkDelay:   cfg.LinkDelay,
		log:         logger,
	}
}

// Traverse fetches rawURL and recursively follows relevant links while depth < maxDepth.
// Fetch failures are recorded in the ledger and yield no documents. On cancellation the
// documents found so far are returned together with ctx.Err(), and pages whose links were
// not all followed are dropped from the ledger.
func (t *Traverser) Traverse(ctx context.Context, rawURL, siteKey string, depth, maxDepth int) ([]models.DocumentRef, error) {
	if depth > maxDepth {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageLog := t.log.WithFields(logrus.Fields{"site_key": siteKey, "url": rawURL, "depth": depth})

	fp := ledger.Fingerprint(rawURL)
	if t.ledger.Has(fp) {
		pageLog.WithField("action", log.ActionSkip).Info("Already crawled")
		return nil, nil
	}

	pageLog.WithField("action", log.ActionCrawl).Info("Crawling page")
	page, err := t.fetcher.Fetch(ctx, rawURL, t.pageTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.ledger.RecordFailure(rawURL, siteKey, err)
		pageLog.WithField("action", log.ActionError).Warnf("Fetch failed: %v", err)
		return nil, nil
	}

	t.ledger.Record(fp, models.VisitRecord{
		URL:    rawURL,
		Site:   siteKey,
		Time:   time.Now(),
		Status: page.Status,
	})

	if !isHTML(page.ContentType) {
		pageLog.Debugf("Not an HTML page (%s), no links extracted", page.ContentType)
		return nil, nil
	}

	links := parse.ExtractLinks(page.Body, page.ContentType, page.FinalURL)
	pageLog.Debugf("Extracted %d links", len(links))

	var docs []models.DocumentRef
	for _, link := range links {
		switch t.classifier.Classify(link.URL, link.Text) {
		case classify.Document:
			docs = append(docs, link.Ref())

		case classify.FollowableLink:
			if depth >= maxDepth {
				continue
			}
			if t.ledger.Has(ledger.Fingerprint(link.URL)) {
				pageLog.WithField("link", link.URL).Debug("Link already crawled")
				continue
			}
			if err := sleepCtx(ctx, t.linkDelay); err != nil {
				t.ledger.Forget(fp)
				return docs, err
			}
			found, err := t.Traverse(ctx, link.URL, siteKey, depth+1, maxDepth)
			docs = append(docs, found...)
			if err != nil {
				// Not every link was followed: visit the page again next run
				t.ledger.Forget(fp)
				return docs, err
			}
		}
	}

	if len(docs) > 0 {
		pageLog.Infof("Found %d document link(s)", len(docs))
	}
	return docs, nil
}

// isHTML reports whether a Content-Type is worth parsing for links.
// A missing header is treated as HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
