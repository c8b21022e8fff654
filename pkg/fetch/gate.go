package fetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// gateEntry tracks a single host's permit and request spacing.
type gateEntry struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter // nil when no minimum interval is configured
}

// HostGate allows at most one in-flight request per host and spaces
// consecutive requests to a host by a minimum interval. One gate is shared
// by every component that talks to the network so the limit holds even when
// two sites live on the same host.
type HostGate struct {
	entries  map[string]*gateEntry
	mu       sync.Mutex
	interval time.Duration
	log      *logrus.Entry
}

// NewHostGate creates a gate. interval <= 0 disables request spacing.
func NewHostGate(interval time.Duration, log *logrus.Entry) *HostGate {
	return &HostGate{
		entries:  make(map[string]*gateEntry),
		interval: interval,
		log:      log,
	}
}

func (g *HostGate) entry(host string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, exists := g.entries[host]
	if !exists {
		e = &gateEntry{sem: semaphore.NewWeighted(1)}
		if g.interval > 0 {
			e.limiter = rate.NewLimiter(rate.Every(g.interval), 1)
		}
		g.entries[host] = e
		g.log.WithFields(logrus.Fields{"host": host, "interval": g.interval}).Debug("Created new host gate")
	}
	return e
}

// Acquire blocks until the host's permit is held and the minimum interval has
// elapsed, or ctx is done. Every successful Acquire must be paired with Release.
func (g *HostGate) Acquire(ctx context.Context, host string) error {
	host = strings.ToLower(host)
	e := g.entry(host)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			g.Release(host)
			return err
		}
	}
	return nil
}

// Release returns the host's permit.
func (g *HostGate) Release(host string) {
	host = strings.ToLower(host)
	g.mu.Lock()
	e, exists := g.entries[host]
	g.mu.Unlock()
	if !exists {
		g.log.Errorf("hostgate: Release called for unknown host: %s", host)
		return
	}

	e.sem.Release(1)
}
