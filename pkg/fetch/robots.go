package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// maxRobotsBytes bounds the robots.txt body we are willing to parse
const maxRobotsBytes = 512 << 10

// RobotsChecker fetches, caches and evaluates robots.txt per host
type RobotsChecker struct {
	client      *http.Client
	gate        *HostGate
	userAgent   string
	robotsCache map[string]*robotstxt.RobotsData // scheme://host -> parsed data (or nil)
	robotsMu    sync.Mutex
	log         *logrus.Entry
}

// NewRobotsChecker creates a RobotsChecker. gate may be nil.
func NewRobotsChecker(client *http.Client, gate *HostGate, userAgent string, log *logrus.Entry) *RobotsChecker {
	return &RobotsChecker{
		client:      client,
		gate:        gate,
		userAgent:   userAgent,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log,
	}
}

// Allowed reports whether the configured user agent may fetch target.
// Missing or unreadable robots.txt files allow everything.
func (rc *RobotsChecker) Allowed(ctx context.Context, target *url.URL, timeout time.Duration) bool {
	data := rc.robotsData(ctx, target, timeout)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), rc.userAgent)
}

func (rc *RobotsChecker) robotsData(ctx context.Context, target *url.URL, timeout time.Duration) *robotstxt.RobotsData {
	cacheKey := target.Scheme + "://" + target.Host

	rc.robotsMu.Lock()
	data, found := rc.robotsCache[cacheKey]
	rc.robotsMu.Unlock()
	if found {
		return data
	}

	robotsURL := (&url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}).String()
	robotsLog := rc.log.WithField("robots_url", robotsURL)
	robotsLog.Debug("Fetching robots.txt...")

	data = rc.fetch(ctx, robotsURL, target.Hostname(), timeout, robotsLog)
	if data == nil && ctx.Err() != nil {
		return nil // Do not cache a result produced by cancellation
	}

	rc.robotsMu.Lock()
	rc.robotsCache[cacheKey] = data
	rc.robotsMu.Unlock()
	return data
}

func (rc *RobotsChecker) fetch(ctx context.Context, robotsURL, host string, timeout time.Duration, robotsLog *logrus.Entry) *robotstxt.RobotsData {
	if rc.gate != nil {
		if err := rc.gate.Acquire(ctx, host); err != nil {
			return nil
		}
		defer rc.gate.Release(host)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		robotsLog.Warnf("Error creating request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		robotsLog.Warnf("Error reading robots.txt: %v", err)
		return nil
	}

	// FromStatusAndBytes treats 4xx as allow-all and 5xx as disallow-all
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		robotsLog.Warnf("Error parsing robots.txt: %v", err)
		return nil
	}
	robotsLog.WithField("status_code", resp.StatusCode).Debug("robots.txt loaded")
	return data
}
