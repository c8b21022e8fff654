package crawler

import (
	"context"
	"io"
	"time"

	"github.com/Sriram-PR/curricula-harvester/pkg/fetch"
)

// Fetcher is the network dependency of the Traverser and the Downloader.
// *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Page, error)
	FetchTo(ctx context.Context, rawURL string, timeout time.Duration, maxBytes int64, dst io.Writer) (*fetch.Page, error)
}

// sleepCtx pauses for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
