package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.AppConfig{StorageRoot: t.TempDir(), StateDir: t.TempDir()}
	_, err := cfg.Validate()
	require.NoError(t, err)
	return cfg
}

func newTestFetcher(t *testing.T, cfg config.AppConfig) *Fetcher {
	t.Helper()
	client := NewClient(cfg.HTTPClientSettings, testLogger())
	return NewFetcher(client, cfg, NewHostGate(0, testLogger()), nil, testLogger())
}

// mockServer creates an httptest.Server that returns status codes in sequence.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
		fmt.Fprint(w, "body")
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestFetch_SuccessSendsIdentityHeaders(t *testing.T) {
	var gotUA, gotLang, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>Lehrplan</body></html>")
	}))
	defer server.Close()

	cfg := testConfig(t)
	page, err := newTestFetcher(t, cfg).Fetch(context.Background(), server.URL+"/plan", time.Second)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Contains(t, string(page.Body), "Lehrplan")
	assert.Equal(t, int64(len(page.Body)), page.Size)
	assert.Equal(t, server.URL+"/plan", page.FinalURL)
	assert.Equal(t, config.DefaultUserAgent, gotUA)
	assert.Equal(t, config.DefaultAcceptLanguage, gotLang)
	assert.Equal(t, config.DefaultAccept, gotAccept)
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "moved")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	page, err := newTestFetcher(t, testConfig(t)).Fetch(context.Background(), server.URL+"/old", time.Second)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new/", page.FinalURL)
}

func TestFetch_HTTPErrorNoRetry(t *testing.T) {
	tests := []struct {
		status   int
		category string
	}{
		{http.StatusNotFound, "HTTP_404"},
		{http.StatusForbidden, "HTTP_403"},
		{http.StatusServiceUnavailable, "HTTP_5xx"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			server, attempts := mockServer(t, []int{tt.status})

			_, err := newTestFetcher(t, testConfig(t)).Fetch(context.Background(), server.URL, time.Second)

			require.Error(t, err)
			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, HTTPError, fe.Kind)
			assert.Equal(t, tt.status, fe.Status)
			assert.ErrorIs(t, err, utils.ErrHTTPStatus)
			assert.Equal(t, tt.category, utils.CategorizeError(err))
			assert.Equal(t, int32(1), attempts.Load(), "fetch never retries")
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close() // Nothing listens any more

	_, err := newTestFetcher(t, testConfig(t)).Fetch(context.Background(), addr, time.Second)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, NetworkError, fe.Kind)
	assert.ErrorIs(t, err, utils.ErrNetwork)
	assert.True(t, IsRetryable(err))
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := newTestFetcher(t, testConfig(t)).Fetch(context.Background(), server.URL, 50*time.Millisecond)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, NetworkError, fe.Kind)
	assert.Equal(t, "Network_Timeout", utils.CategorizeError(err))
}

func TestFetch_ParentCancelledReturnsContextError(t *testing.T) {
	server, _ := mockServer(t, []int{http.StatusOK})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(t, testConfig(t)).Fetch(ctx, server.URL, time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var fe *FetchError
	assert.False(t, errors.As(err, &fe))
}

func TestFetch_TooLarge(t *testing.T) {
	payload := strings.Repeat("x", 2048)

	t.Run("declared length", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, payload)
		}))
		defer server.Close()

		cfg := testConfig(t)
		cfg.MaxPageBytes = 1024
		_, err := newTestFetcher(t, cfg).Fetch(context.Background(), server.URL, time.Second)

		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, TooLarge, fe.Kind)
		assert.ErrorIs(t, err, utils.ErrTooLarge)
		assert.False(t, IsRetryable(err))
	})

	t.Run("chunked body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for range 4 {
				fmt.Fprint(w, payload[:512])
				w.(http.Flusher).Flush()
			}
		}))
		defer server.Close()

		var buf bytes.Buffer
		_, err := newTestFetcher(t, testConfig(t)).FetchTo(context.Background(), server.URL, time.Second, 1000, &buf)

		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, TooLarge, fe.Kind)
	})
}

func TestFetchTo_StreamsToFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 fake")
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "doc.pdf.part")
	f, err := os.Create(path)
	require.NoError(t, err)
	page, err := newTestFetcher(t, testConfig(t)).FetchTo(context.Background(), server.URL+"/doc.pdf", time.Second, 0, FileWriter(f))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Nil(t, page.Body)
	assert.Equal(t, int64(len("%PDF-1.4 fake")), page.Size)
	assert.Equal(t, "application/pdf", page.ContentType)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestFetchTo_WriterFailureIsFilesystemError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "content")
	}))
	defer server.Close()

	failing := writerFunc(func(p []byte) (int, error) { return 0, os.ErrPermission })
	_, err := newTestFetcher(t, testConfig(t)).FetchTo(context.Background(), server.URL, time.Second, 0, FileWriter(failing))

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFilesystem)
	assert.Equal(t, "Filesystem_Permission", utils.CategorizeError(err))
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(t, testConfig(t)).Fetch(context.Background(), "not a url", time.Second)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, NetworkError, fe.Kind)
	assert.ErrorIs(t, err, utils.ErrRequestCreation)
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		fmt.Fprint(w, "ok")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t)
	client := NewClient(cfg.HTTPClientSettings, testLogger())
	gate := NewHostGate(0, testLogger())
	robots := NewRobotsChecker(client, gate, cfg.UserAgent, testLogger())
	fetcher := NewFetcher(client, cfg, gate, robots, testLogger())

	_, err := fetcher.Fetch(context.Background(), server.URL+"/private/plan", time.Second)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, Disallowed, fe.Kind)
	assert.Equal(t, "Policy_Robots", utils.CategorizeError(err))
	assert.Equal(t, int32(0), pageHits.Load())

	_, err = fetcher.Fetch(context.Background(), server.URL+"/public/plan", time.Second)
	require.NoError(t, err)
	assert.Equal(t, int32(1), pageHits.Load())
}

func TestFailureKind_String(t *testing.T) {
	assert.Equal(t, "NetworkError", NetworkError.String())
	assert.Equal(t, "HttpError", HTTPError.String())
	assert.Equal(t, "TooLarge", TooLarge.String())
	assert.Equal(t, "Disallowed", Disallowed.String())
}
