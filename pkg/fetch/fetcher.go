package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// FailureKind classifies a failed fetch
type FailureKind int

const (
	NetworkError FailureKind = iota + 1 // DNS, connect, TLS, timeout, broken body
	HTTPError                           // Non-2xx status
	TooLarge                            // Body exceeded the configured cap
	Disallowed                          // Blocked by robots.txt
)

func (k FailureKind) String() string {
	switch k {
	case NetworkError:
		return "NetworkError"
	case HTTPError:
		return "HttpError"
	case TooLarge:
		return "TooLarge"
	case Disallowed:
		return "Disallowed"
	default:
		return "Unknown"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case HTTPError:
		return utils.ErrHTTPStatus
	case TooLarge:
		return utils.ErrTooLarge
	case Disallowed:
		return utils.ErrRobotsDisallowed
	default:
		return utils.ErrNetwork
	}
}

// FetchError is the typed failure returned by the Fetcher
type FetchError struct {
	Kind   FailureKind
	URL    string
	Status int    // HTTP status for HTTPError
	Detail string // Human-readable cause
	Err    error  // Underlying error, may be nil
}

func (e *FetchError) Error() string {
	if e.Kind == HTTPError {
		return fmt.Sprintf("%s: status %d for '%s'", e.Kind.sentinel(), e.Status, e.URL)
	}
	return fmt.Sprintf("%s: %s for '%s'", e.Kind.sentinel(), e.Detail, e.URL)
}

// Unwrap exposes both the kind's sentinel and the underlying cause
func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

// Page is a successful fetch
type Page struct {
	Body        []byte // Nil when streamed with FetchTo
	Size        int64
	Status      int
	ContentType string
	FinalURL    string // URL after redirects; the base for resolving links
}

// Fetcher performs single bounded GET requests with the configured identity.
// It never retries; see Retry.
type Fetcher struct {
	client         *http.Client
	gate           *HostGate
	robots         *RobotsChecker // nil disables robots.txt checks
	userAgent      string
	accept         string
	acceptLanguage string
	maxPageBytes   int64
	log            *logrus.Entry
}

// NewFetcher creates a Fetcher. gate and robots may be nil.
func NewFetcher(client *http.Client, cfg config.AppConfig, gate *HostGate, robots *RobotsChecker, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:         client,
		gate:           gate,
		robots:         robots,
		userAgent:      cfg.UserAgent,
		accept:         cfg.Accept,
		acceptLanguage: cfg.AcceptLanguage,
		maxPageBytes:   cfg.MaxPageBytes,
		log:            log,
	}
}

// Fetch retrieves rawURL into memory, bounded by timeout and the page size cap.
// Failures are *FetchError values; if ctx itself is done its error is returned instead.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Page, error) {
	var buf bytes.Buffer
	page, err := f.FetchTo(ctx, rawURL, timeout, f.maxPageBytes, &buf)
	if err != nil {
		return nil, err
	}
	page.Body = buf.Bytes()
	return page, nil
}

// FetchTo streams the body of rawURL into dst. maxBytes <= 0 means unlimited.
// On failure dst may hold a partial body.
func (f *Fetcher) FetchTo(ctx context.Context, rawURL string, timeout time.Duration, maxBytes int64, dst io.Writer) (*Page, error) {
	reqLog := f.log.WithField("url", rawURL)

	target, err := url.Parse(rawURL)
	if err == nil && target.Host == "" {
		err = errors.New("missing host")
	}
	if err != nil {
		return nil, &FetchError{Kind: NetworkError, URL: rawURL, Detail: "invalid URL", Err: fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)}
	}

	if f.robots != nil && !f.robots.Allowed(ctx, target, timeout) {
		reqLog.Debug("Disallowed by robots.txt")
		return nil, &FetchError{Kind: Disallowed, URL: rawURL, Detail: "robots.txt disallows this path"}
	}

	host := target.Hostname()
	if f.gate != nil {
		if err := f.gate.Acquire(ctx, host); err != nil {
			return nil, err
		}
		defer f.gate.Release(host)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: NetworkError, URL: rawURL, Detail: "cannot build request", Err: fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", f.accept)
	req.Header.Set("Accept-Language", f.acceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{Kind: NetworkError, URL: rawURL, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		reqLog.WithField("status_code", resp.StatusCode).Debug("Non-2xx response")
		return nil, &FetchError{Kind: HTTPError, URL: rawURL, Status: resp.StatusCode, Detail: resp.Status}
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, &FetchError{Kind: TooLarge, URL: rawURL, Status: resp.StatusCode,
			Detail: fmt.Sprintf("content length %d exceeds cap %d", resp.ContentLength, maxBytes)}
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	n, err := io.Copy(dst, body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var fsErr *writeError
		if errors.As(err, &fsErr) {
			return nil, fmt.Errorf("%w: writing body of '%s': %w", utils.ErrFilesystem, rawURL, fsErr.err)
		}
		return nil, &FetchError{Kind: NetworkError, URL: rawURL, Status: resp.StatusCode, Detail: "reading body: " + err.Error(), Err: err}
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, &FetchError{Kind: TooLarge, URL: rawURL, Status: resp.StatusCode,
			Detail: fmt.Sprintf("body exceeds cap %d", maxBytes)}
	}

	return &Page{
		Size:        n,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// writeError marks failures of the destination writer so they are not mistaken for network errors
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }

// FileWriter wraps w so that its write failures surface as filesystem errors from FetchTo
func FileWriter(w io.Writer) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		n, err := w.Write(p)
		if err != nil {
			return n, &writeError{err: err}
		}
		return n, nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
