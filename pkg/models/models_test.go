package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitRecord_PageOmitsDocumentFields(t *testing.T) {
	rec := VisitRecord{
		URL:    "https://example.com/lehrplan",
		Site:   "bayern",
		Time:   time.Now().UTC(),
		Status: 200,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"site":"bayern"`)
	assert.NotContains(t, raw, "file")
	assert.NotContains(t, raw, "size")
	assert.NotContains(t, raw, "sha256")
	assert.False(t, rec.IsDocument())
}

func TestVisitRecord_DocumentFields(t *testing.T) {
	rec := VisitRecord{URL: "https://example.com/a.pdf", File: "raw/bayern/a.pdf", Size: 42, Text: "Mathematik"}
	assert.True(t, rec.IsDocument())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text":"Mathematik"`)
}

func TestErrorEntry_SiteLevel(t *testing.T) {
	entry := ErrorEntry{Site: "hessen", Error: "boom", Time: time.Now().UTC()}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, `"url"`)
	assert.Contains(t, raw, `"site":"hessen"`)
}

func TestDiscoveredLink_Ref(t *testing.T) {
	link := DiscoveredLink{URL: "https://x/a.pdf", Text: "A", SourcePage: "https://x/"}
	assert.Equal(t, DocumentRef{URL: "https://x/a.pdf", Text: "A", SourcePage: "https://x/"}, link.Ref())
}
