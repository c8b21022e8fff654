package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sriram-PR/curricula-harvester/pkg/models"
)

// naiveISOLayout matches timestamps without a zone offset, e.g. "2025-01-14T10:03:22.512345"
const naiveISOLayout = "2006-01-02T15:04:05.999999999"

type legacyVisit struct {
	URL    string `json:"url"`
	Land   string `json:"land"`
	Site   string `json:"site"`
	Time   string `json:"time"`
	Status int    `json:"status"`
	File   string `json:"file"`
	Size   int64  `json:"size"`
	Text   string `json:"text"`
	SHA256 string `json:"sha256"`
}

type legacyError struct {
	URL   string `json:"url"`
	Land  string `json:"land"`
	Site  string `json:"site"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Time  string `json:"time"`
}

type legacySnapshot struct {
	Crawled map[string]legacyVisit `json:"crawled"`
	Errors  []legacyError          `json:"errors"`
	LastRun *string                `json:"last_run"`
}

// parseLooseTime accepts RFC 3339 and zone-less ISO timestamps (read as local time)
func parseLooseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(naiveISOLayout, s, time.Local)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func decodeLegacySnapshot(data []byte) (*models.LedgerSnapshot, error) {
	var raw legacySnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	snap := models.NewLedgerSnapshot()
	for fp, v := range raw.Crawled {
		ts, err := parseLooseTime(v.Time)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", fp, err)
		}
		snap.Crawled[fp] = models.VisitRecord{
			URL:    v.URL,
			Site:   firstNonEmpty(v.Site, v.Land),
			Time:   ts,
			Status: v.Status,
			File:   v.File,
			Size:   v.Size,
			Text:   v.Text,
			SHA256: v.SHA256,
		}
	}
	for i, e := range raw.Errors {
		ts, err := parseLooseTime(e.Time)
		if err != nil {
			return nil, fmt.Errorf("error entry %d: %w", i, err)
		}
		snap.Errors = append(snap.Errors, models.ErrorEntry{
			URL:   e.URL,
			Site:  firstNonEmpty(e.Site, e.Land),
			Error: e.Error,
			Kind:  e.Kind,
			Time:  ts,
		})
	}
	if raw.LastRun != nil && *raw.LastRun != "" {
		ts, err := parseLooseTime(*raw.LastRun)
		if err != nil {
			return nil, fmt.Errorf("last_run: %w", err)
		}
		snap.LastRun = &ts
	}
	return snap, nil
}
