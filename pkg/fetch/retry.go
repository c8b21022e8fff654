package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
)

// RetryPolicy retries transient failures with exponential backoff and jitter
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// NewDownloadRetryPolicy builds the policy used for document downloads
func NewDownloadRetryPolicy(cfg config.AppConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   cfg.DownloadRetries,
		InitialDelay: cfg.InitialRetryDelay,
		MaxDelay:     cfg.MaxRetryDelay,
	}
}

// IsRetryable reports whether err is a transient fetch failure: network errors, 5xx and 429
func IsRetryable(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case NetworkError:
		return true
	case HTTPError:
		return fe.Status >= 500 || fe.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// Backoff returns the delay before retry attempt (1-based): initial * 2^(attempt-1),
// capped by MaxDelay, with +/- 10% jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialDelay) * math.Pow(2, float64(attempt-1))
	delay := time.Duration(backoff)
	if delay <= 0 || (p.MaxDelay > 0 && delay > p.MaxDelay) {
		delay = p.MaxDelay
	}
	if delay <= 0 {
		return 0
	}

	var jitter time.Duration
	if jitterRange := int64(delay) / 5; jitterRange > 0 {
		jitter = time.Duration(rand.Int63n(jitterRange)) - (delay / 10)
	}
	if final := delay + jitter; final > 0 {
		return final
	}
	return 0
}

// Do runs fn until it succeeds, fails with a non-retryable error, or retries
// are exhausted. The context is checked before every attempt and during backoff.
func (p RetryPolicy) Do(ctx context.Context, log *logrus.Entry, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Backoff(attempt)
			log.WithFields(logrus.Fields{"attempt": attempt, "max_retries": p.MaxRetries, "delay": delay}).
				Warnf("Retrying after: %v", lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("cancelled during retry delay after error: %w", lastErr)
			}
		}
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
