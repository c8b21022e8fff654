package config

import "time"

// Ledger backends
const (
	LedgerBackendFile   = "file"
	LedgerBackendBadger = "badger"
)

// SiteConfig holds configuration specific to a single source site
type SiteConfig struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	SeedURLs []string `yaml:"seed_urls"`
	MaxDepth *int     `yaml:"max_depth,omitempty"` // Overrides the global max_depth
}

// KeywordConfig holds the static keyword sets used by the URL classifier
type KeywordConfig struct {
	Topics     []string `yaml:"topics"`     // Subject terms (mathematik, biologie, ...)
	Structural []string `yaml:"structural"` // Page-structure terms (lehrplan, grundschule, ...)
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent          string           `yaml:"user_agent"`
	Accept             string           `yaml:"accept"`
	AcceptLanguage     string           `yaml:"accept_language"`
	PageTimeout        time.Duration    `yaml:"page_timeout"`
	DocumentTimeout    time.Duration    `yaml:"document_timeout"`
	MaxDepth           int              `yaml:"max_depth"`
	LinkDelay          time.Duration    `yaml:"link_delay"`               // Pause before recursing into a followable link
	SeedDelay          time.Duration    `yaml:"seed_delay"`               // Pause between seed URLs of a site
	DownloadDelay      time.Duration    `yaml:"download_delay"`           // Pause between document downloads
	RequestDelay       time.Duration    `yaml:"request_delay"`            // Minimum interval between requests to one host
	MaxPageBytes       int64            `yaml:"max_page_bytes,omitempty"` // 0 = unlimited
	MaxDocumentBytes   int64            `yaml:"max_document_bytes,omitempty"`
	DownloadRetries    int              `yaml:"download_retries"`
	InitialRetryDelay  time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration    `yaml:"max_retry_delay,omitempty"`
	RespectRobots      bool             `yaml:"respect_robots,omitempty"`
	SiteConcurrency    int              `yaml:"site_concurrency,omitempty"`
	StorageRoot        string           `yaml:"storage_root"`
	StateDir           string           `yaml:"state_dir"`
	LedgerBackend      string           `yaml:"ledger_backend,omitempty"`
	LedgerFilename     string           `yaml:"ledger_filename,omitempty"`
	ManifestFilename   string           `yaml:"manifest_filename,omitempty"`
	DocumentExtensions []string         `yaml:"document_extensions,omitempty"`
	Keywords           KeywordConfig    `yaml:"keywords"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Sites              []SiteConfig     `yaml:"sites"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// GetEffectiveMaxDepth determines the traversal depth bound for a site
func GetEffectiveMaxDepth(siteCfg SiteConfig, appCfg AppConfig) int {
	if siteCfg.MaxDepth != nil {
		return *siteCfg.MaxDepth
	}
	return appCfg.MaxDepth
}

// DisplayName returns the site's name, falling back to its key
func (c SiteConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Key
}

// Site looks up a site by key
func (c *AppConfig) Site(key string) (SiteConfig, bool) {
	for _, s := range c.Sites {
		if s.Key == key {
			return s, true
		}
	}
	return SiteConfig{}, false
}

// SiteKeys returns all site keys in configured order
func (c *AppConfig) SiteKeys() []string {
	keys := make([]string, 0, len(c.Sites))
	for _, s := range c.Sites {
		keys = append(keys, s.Key)
	}
	return keys
}
