package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/curricula-harvester/pkg/classify"
	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/fetch"
	"github.com/Sriram-PR/curricula-harvester/pkg/ledger"
	applog "github.com/Sriram-PR/curricula-harvester/pkg/log"
)

// mockSite serves HTML pages and PDF bodies from a path -> content map.
// Paths ending in .pdf are served as application/pdf, everything else as HTML.
// Unknown paths return 404.
type mockSite struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	hooks map[string]func(r *http.Request)
}

func newMockSite(t *testing.T, pages map[string]string) *mockSite {
	t.Helper()
	site := &mockSite{hits: make(map[string]int), hooks: make(map[string]func(*http.Request))}
	site.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits[r.URL.Path]++
		hook := site.hooks[r.URL.Path]
		site.mu.Unlock()

		if hook != nil {
			hook(r)
		}

		content, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(strings.ToLower(r.URL.Path), ".pdf") {
			w.Header().Set("Content-Type", "application/pdf")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		fmt.Fprint(w, content)
	}))
	t.Cleanup(site.Close)
	return site
}

// OnRequest runs fn before path is served; nil removes the hook
func (m *mockSite) OnRequest(path string, fn func(r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		delete(m.hooks, path)
		return
	}
	m.hooks[path] = fn
}

// cancelAndHang cancels the crawl and holds the request until the client gives up on it
func cancelAndHang(cancel context.CancelFunc) func(r *http.Request) {
	return func(r *http.Request) {
		cancel()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
}

func (m *mockSite) Hits(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

func (m *mockSite) TotalHits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.hits {
		total += n
	}
	return total
}

func links(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, h, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.AppConfig{StorageRoot: t.TempDir(), StateDir: t.TempDir()}
	_, err := cfg.Validate()
	require.NoError(t, err)
	cfg.LinkDelay = 0
	cfg.SeedDelay = 0
	cfg.DownloadDelay = 0
	cfg.DownloadRetries = 0
	return cfg
}

type testHarness struct {
	cfg        config.AppConfig
	ledger     *ledger.Ledger
	traverser  *Traverser
	downloader *Downloader
	driver     *SiteDriver
}

func newHarness(t *testing.T, cfg config.AppConfig, l *ledger.Ledger) *testHarness {
	t.Helper()
	logger := applog.Discard()
	client := fetch.NewClient(cfg.HTTPClientSettings, logger)
	fetcher := fetch.NewFetcher(client, cfg, fetch.NewHostGate(cfg.RequestDelay, logger), nil, logger)
	classifier := classify.New(cfg)

	traverser := NewTraverser(fetcher, classifier, l, cfg, logger)
	downloader := NewDownloader(fetcher, classifier, l, cfg, logger)
	return &testHarness{
		cfg:        cfg,
		ledger:     l,
		traverser:  traverser,
		downloader: downloader,
		driver:     NewSiteDriver(traverser, downloader, cfg, logger),
	}
}
