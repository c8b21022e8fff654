package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Identity
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Accept == "" {
		c.Accept = DefaultAccept
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = DefaultAcceptLanguage
	}

	// Timeouts
	if c.PageTimeout <= 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = 60 * time.Second
	}
	if c.DocumentTimeout < c.PageTimeout {
		warnings = append(warnings, fmt.Sprintf(
			"document_timeout (%v) is shorter than page_timeout (%v)", c.DocumentTimeout, c.PageTimeout))
	}

	// MaxDepth
	if c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, setting to 0 (seed pages only)")
		c.MaxDepth = 0
	}

	// Politeness delays
	if c.LinkDelay < 0 || c.SeedDelay < 0 || c.DownloadDelay < 0 || c.RequestDelay < 0 {
		warnings = append(warnings, "negative delays are not allowed, resetting them to 0")
		c.LinkDelay = max(c.LinkDelay, 0)
		c.SeedDelay = max(c.SeedDelay, 0)
		c.DownloadDelay = max(c.DownloadDelay, 0)
		c.RequestDelay = max(c.RequestDelay, 0)
	}

	// Size caps
	if c.MaxPageBytes < 0 {
		warnings = append(warnings, "max_page_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPageBytes = 0
	}
	if c.MaxDocumentBytes < 0 {
		warnings = append(warnings, "max_document_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxDocumentBytes = 0
	}

	// Retries (downloads only)
	if c.DownloadRetries < 0 {
		warnings = append(warnings, "download_retries cannot be negative, setting to 0")
		c.DownloadRetries = 0
	}
	if c.DownloadRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// SiteConcurrency
	if c.SiteConcurrency <= 0 {
		c.SiteConcurrency = 1
	}

	// Paths
	if c.StorageRoot == "" {
		warnings = append(warnings, "storage_root is empty, defaulting to './data/curricula/raw'")
		c.StorageRoot = "./data/curricula/raw"
	}
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './data/curricula'")
		c.StateDir = "./data/curricula"
	}
	if c.LedgerFilename == "" {
		c.LedgerFilename = "crawl_log.json"
	}
	if c.ManifestFilename == "" {
		c.ManifestFilename = "manifest.yaml"
	}

	// Ledger backend
	switch strings.ToLower(c.LedgerBackend) {
	case "", LedgerBackendFile:
		c.LedgerBackend = LedgerBackendFile
	case LedgerBackendBadger:
		c.LedgerBackend = LedgerBackendBadger
	default:
		return warnings, fmt.Errorf("%w: unknown ledger_backend '%s' (want '%s' or '%s')",
			utils.ErrConfigValidation, c.LedgerBackend, LedgerBackendFile, LedgerBackendBadger)
	}

	// Classifier inputs
	if len(c.DocumentExtensions) == 0 {
		c.DocumentExtensions = []string{".pdf"}
	}
	for i, ext := range c.DocumentExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.DocumentExtensions[i] = ext
	}
	if len(c.Keywords.Topics) == 0 {
		c.Keywords.Topics = DefaultTopicKeywords()
	}
	if len(c.Keywords.Structural) == 0 {
		c.Keywords.Structural = DefaultStructuralKeywords()
	}

	c.validateHTTPClientSettings()

	// Sites
	if len(c.Sites) == 0 {
		warnings = append(warnings, "no sites configured, using the built-in list of state curriculum servers")
		c.Sites = DefaultSites()
	}
	seen := make(map[string]bool, len(c.Sites))
	for i := range c.Sites {
		siteWarnings, siteErr := c.Sites[i].Validate()
		if siteErr != nil {
			return warnings, fmt.Errorf("site #%d (%q): %w", i+1, c.Sites[i].Key, siteErr)
		}
		for _, w := range siteWarnings {
			warnings = append(warnings, fmt.Sprintf("[%s] %s", c.Sites[i].Key, w))
		}
		if seen[c.Sites[i].Key] {
			return warnings, fmt.Errorf("%w: duplicate site key '%s'", utils.ErrConfigValidation, c.Sites[i].Key)
		}
		seen[c.Sites[i].Key] = true
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	c.Key = strings.TrimSpace(c.Key)
	if c.Key == "" {
		return nil, fmt.Errorf("%w: site needs a key", utils.ErrConfigValidation)
	}
	if c.Key != utils.SanitizeFilename(c.Key) {
		return nil, fmt.Errorf("%w: site key '%s' is not usable as a directory name", utils.ErrConfigValidation, c.Key)
	}
	if len(c.SeedURLs) == 0 {
		return nil, fmt.Errorf("%w: site '%s' has no seed_urls", utils.ErrConfigValidation, c.Key)
	}
	for _, seed := range c.SeedURLs {
		parsed, parseErr := url.ParseRequestURI(seed)
		if parseErr != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("%w: site '%s' has invalid seed URL '%s'", utils.ErrConfigValidation, c.Key, seed)
		}
	}
	if c.Name == "" {
		warnings = append(warnings, "name is empty, using the key as display name")
		c.Name = c.Key
	}
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, setting to 0")
		zero := 0
		c.MaxDepth = &zero
	}
	return warnings, nil
}
