package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func sampleSnapshot() *models.LedgerSnapshot {
	now := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	snap := models.NewLedgerSnapshot()
	snap.Crawled["a1b2c3d4e5f6"] = models.VisitRecord{
		URL: "https://example.com/lehrplan", Site: "bayern", Time: now, Status: 200,
	}
	snap.Crawled["0123456789ab"] = models.VisitRecord{
		URL: "https://example.com/mathe.pdf", Site: "bayern", Time: now,
		File: "/data/bayern/mathe.pdf", Size: 1024, Text: "Mathematik", SHA256: "abc",
	}
	snap.Errors = append(snap.Errors,
		models.ErrorEntry{URL: "https://example.com/broken", Error: "status 404", Kind: "HTTP_404", Time: now},
		models.ErrorEntry{Site: "hessen", Error: "panic", Time: now.Add(time.Second)},
	)
	snap.Pending["hessen"] = []models.DocumentRef{
		{URL: "https://example.com/kc.pdf", Text: "Kerncurriculum", SourcePage: "https://example.com/lehrplan"},
	}
	snap.LastRun = &now
	return snap
}

func newTestBadgerStore(t *testing.T, dir string) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	return store
}

func TestFileStore_MissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "crawl_log.json"))

	snap, exists, err := store.Read()
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, snap)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crawl_log.json")
	store := NewFileStore(path)
	want := sampleSnapshot()

	require.NoError(t, store.Write(want))

	got, exists, err := store.Read()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, want, got)

	// Save again from what we loaded; the bytes must be identical
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, store.Write(got))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestFileStore_EmptySnapshotEncodesEmptyCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl_log.json")
	require.NoError(t, NewFileStore(path).Write(models.NewLedgerSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"crawled": {}`)
	assert.Contains(t, string(data), `"errors": []`)
	assert.Contains(t, string(data), `"last_run": null`)
}

func TestFileStore_Corrupt(t *testing.T) {
	tests := map[string]string{
		"truncated":  `{"crawled": {"abc": {"url": "https://x"`,
		"wrong type": `{"crawled": 42}`,
		"garbage":    "\x00\x01not json",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "crawl_log.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, exists, err := NewFileStore(path).Read()
			require.Error(t, err)
			assert.True(t, exists)
			assert.ErrorIs(t, err, utils.ErrCorruptLedger)
		})
	}
}

func TestFileStore_InterruptedWriteKeepsPreviousLedger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawl_log.json")
	store := NewFileStore(path)
	want := sampleSnapshot()
	require.NoError(t, store.Write(want))

	// A crash between temp write and rename leaves a half-written temp file behind
	leftover := filepath.Join(dir, "crawl_log.json.tmp-12345")
	require.NoError(t, os.WriteFile(leftover, []byte(`{"crawled": {"trunc`), 0644))

	got, exists, err := store.Read()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, want, got)

	// The next successful save still lands on the real path
	want.Errors = append(want.Errors, models.ErrorEntry{URL: "https://x/y", Error: "boom", Time: time.Now().UTC()})
	require.NoError(t, store.Write(want))
	got, _, err = store.Read()
	require.NoError(t, err)
	assert.Len(t, got.Errors, 3)
}

func TestFileStore_NoTempFilesAfterWrite(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "crawl_log.json"))
	require.NoError(t, store.Write(sampleSnapshot()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "crawl_log.json", entries[0].Name())
}

func TestFileStore_LegacyFormat(t *testing.T) {
	legacy := `{
  "crawled": {
    "5d41402abc4b": {"url": "https://www.lehrplanplus.bayern.de/", "land": "bayern", "time": "2025-01-14T10:03:22.512345", "status": 200},
    "7d793037a076": {"url": "https://x/plan.pdf", "land": "bayern", "file": "data/curricula/raw/bayern/plan.pdf", "size": 77, "text": "Plan", "time": "2025-01-14T10:04:00"}
  },
  "errors": [
    {"url": "https://x/broken", "error": "timeout", "time": "2025-01-14T10:05:00.1"},
    {"land": "hessen", "error": "boom", "time": "2025-01-14T10:06:00"}
  ],
  "last_run": "2025-01-14T10:07:00.000001"
}`
	path := filepath.Join(t.TempDir(), "crawl_log.json")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	snap, exists, err := NewFileStore(path).Read()
	require.NoError(t, err)
	assert.True(t, exists)
	require.Len(t, snap.Crawled, 2)
	assert.Equal(t, "bayern", snap.Crawled["5d41402abc4b"].Site)
	assert.Equal(t, 200, snap.Crawled["5d41402abc4b"].Status)
	assert.Equal(t, int64(77), snap.Crawled["7d793037a076"].Size)
	assert.Equal(t, 14, snap.Crawled["7d793037a076"].Time.Day())
	require.Len(t, snap.Errors, 2)
	assert.Equal(t, "hessen", snap.Errors[1].Site)
	require.NotNil(t, snap.LastRun)
	assert.Equal(t, 7, snap.LastRun.Minute())
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := newTestBadgerStore(t, dir)

	_, exists, err := store.Read()
	require.NoError(t, err)
	assert.False(t, exists, "fresh database holds no ledger")

	want := sampleSnapshot()
	require.NoError(t, store.Write(want))
	require.NoError(t, store.Close())

	reopened := newTestBadgerStore(t, dir)
	t.Cleanup(func() { reopened.Close() })

	got, exists, err := reopened.Read()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, len(want.Crawled), len(got.Crawled))
	assert.Equal(t, want.Crawled["0123456789ab"].File, got.Crawled["0123456789ab"].File)
	assert.True(t, want.Crawled["0123456789ab"].Time.Equal(got.Crawled["0123456789ab"].Time))
	require.Len(t, got.Errors, 2)
	assert.Equal(t, "https://example.com/broken", got.Errors[0].URL, "error order must survive")
	assert.Equal(t, "hessen", got.Errors[1].Site)
	require.NotNil(t, got.LastRun)
	assert.True(t, want.LastRun.Equal(*got.LastRun))
	assert.Equal(t, want.Pending, got.Pending)
}

func TestBadgerStore_WritesOnlyChangesAndRemovesStaleKeys(t *testing.T) {
	dir := t.TempDir()
	store := newTestBadgerStore(t, dir)

	snap := sampleSnapshot()
	require.NoError(t, store.Write(snap))

	delete(snap.Crawled, "a1b2c3d4e5f6")
	delete(snap.Pending, "hessen")
	snap.Crawled["ffffffffffff"] = models.VisitRecord{URL: "https://example.com/neu", Site: "bayern", Status: 200}
	require.NoError(t, store.Write(snap))
	require.NoError(t, store.Close())

	reopened := newTestBadgerStore(t, dir)
	t.Cleanup(func() { reopened.Close() })
	got, _, err := reopened.Read()
	require.NoError(t, err)
	assert.Len(t, got.Crawled, 2)
	assert.NotContains(t, got.Crawled, "a1b2c3d4e5f6")
	assert.Contains(t, got.Crawled, "ffffffffffff")
	assert.Empty(t, got.Pending)

	// Keys read back are known, so removing one after a reopen also reaches the database
	delete(got.Crawled, "ffffffffffff")
	require.NoError(t, reopened.Write(got))
	again, _, err := reopened.Read()
	require.NoError(t, err)
	assert.NotContains(t, again.Crawled, "ffffffffffff")
}

func TestBadgerStore_LargeLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("writes 60k records")
	}
	dir := t.TempDir()
	store := newTestBadgerStore(t, dir)

	now := time.Now().UTC()
	snap := models.NewLedgerSnapshot()
	for i := range 60000 {
		url := fmt.Sprintf("https://example.com/lehrplan/seite-%06d", i)
		snap.Crawled[fmt.Sprintf("%012x", i)] = models.VisitRecord{URL: url, Site: "bayern", Time: now, Status: 200}
	}
	snap.LastRun = &now
	require.NoError(t, store.Write(snap))

	// A later save with a handful of new records on top
	for i := 60000; i < 60010; i++ {
		snap.Crawled[fmt.Sprintf("%012x", i)] = models.VisitRecord{URL: "https://example.com/neu", Site: "bayern", Time: now}
	}
	require.NoError(t, store.Write(snap))
	require.NoError(t, store.Close())

	reopened := newTestBadgerStore(t, dir)
	t.Cleanup(func() { reopened.Close() })
	got, exists, err := reopened.Read()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Len(t, got.Crawled, 60010)
	require.NotNil(t, got.LastRun)
}

func TestBadgerStore_ErrorOrderBeyondTen(t *testing.T) {
	store := newTestBadgerStore(t, t.TempDir())
	t.Cleanup(func() { store.Close() })

	snap := models.NewLedgerSnapshot()
	for i := range 12 {
		snap.Errors = append(snap.Errors, models.ErrorEntry{URL: "https://x/" + string(rune('a'+i)), Error: "e"})
	}
	require.NoError(t, store.Write(snap))

	got, _, err := store.Read()
	require.NoError(t, err)
	require.Len(t, got.Errors, 12)
	for i := range 12 {
		assert.Equal(t, snap.Errors[i].URL, got.Errors[i].URL)
	}
}

func TestStores_Location(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl_log.json")
	assert.Equal(t, path, NewFileStore(path).Location())

	dir := t.TempDir()
	store := newTestBadgerStore(t, dir)
	t.Cleanup(func() { store.Close() })
	assert.Equal(t, dir, store.Location())
}
