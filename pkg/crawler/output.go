package crawler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// BuildManifest lists the downloaded documents still present on disk.
// docs are expected in ledger.Documents order (site, then path).
func BuildManifest(docs []models.VisitRecord, sites []config.SiteConfig, storageRoot string, log *logrus.Entry) models.Manifest {
	names := make(map[string]string, len(sites))
	for _, s := range sites {
		names[s.Key] = s.DisplayName()
	}

	manifest := models.Manifest{
		GeneratedAt: time.Now(),
		StorageRoot: storageRoot,
		Documents:   make([]models.DocumentMetadata, 0, len(docs)),
	}
	for _, rec := range docs {
		if !fileExists(rec.File) {
			log.WithField("file", rec.File).Warn("Ledger lists a document that is no longer on disk, leaving it out of the manifest")
			continue
		}
		manifest.Documents = append(manifest.Documents, models.DocumentMetadata{
			Site:       rec.Site,
			SiteName:   names[rec.Site],
			Path:       rec.File,
			SourceURL:  rec.URL,
			SourceText: rec.Text,
			SourcePage: rec.SourcePage,
			Size:       rec.Size,
			SHA256:     rec.SHA256,
			FetchedAt:  rec.Time,
		})
	}
	manifest.TotalDocuments = len(manifest.Documents)
	return manifest
}

// WriteManifest writes the manifest as YAML, replacing any previous file atomically
func WriteManifest(path string, manifest models.Manifest, log *logrus.Entry) error {
	log.Infof("Preparing to write document manifest to: %s", path)

	yamlData, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal manifest to YAML: %w", utils.ErrParsing, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating manifest directory '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmpPath := path + partSuffix
	if err := os.WriteFile(tmpPath, yamlData, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to write manifest '%s': %w", utils.ErrFilesystem, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to replace manifest '%s': %w", utils.ErrFilesystem, path, err)
	}

	log.Infof("Successfully wrote manifest (%d documents) to %s", manifest.TotalDocuments, path)
	return nil
}

// ReadManifest loads a manifest written by WriteManifest
func ReadManifest(path string) (models.Manifest, error) {
	var manifest models.Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest, fmt.Errorf("%w: reading manifest '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("%w: parsing manifest '%s': %w", utils.ErrParsing, path, err)
	}
	return manifest, nil
}
