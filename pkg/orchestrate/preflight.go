package orchestrate

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/ledger"
	"github.com/Sriram-PR/curricula-harvester/pkg/storage"
	"github.com/Sriram-PR/curricula-harvester/pkg/utils"
)

// Preflight checks everything that must hold before the first request goes out:
// the storage root and state directory are writable and the ledger loads.
// On success the caller owns the returned store and must close it.
func Preflight(appCfg config.AppConfig, logger *logrus.Entry) (*ledger.Ledger, storage.LedgerStore, error) {
	for _, dir := range []string{appCfg.StorageRoot, appCfg.StateDir} {
		if err := checkWritable(dir); err != nil {
			return nil, nil, err
		}
	}

	store, err := ledger.OpenStore(appCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	l, err := ledger.Load(store)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("loading ledger from %s: %w", store.Location(), err)
	}

	stats := l.Stats()
	if stats.LastRun != nil {
		logger.Infof("Resuming from ledger %s: %d visited, %d documents, %d pending, %d errors (last run %s)",
			store.Location(), stats.Visited, stats.Documents, stats.Pending, stats.Errors, stats.LastRun.Format("2006-01-02 15:04:05"))
	} else {
		logger.Infof("Starting with an empty ledger at %s", store.Location())
	}
	return l, store, nil
}

// checkWritable creates dir if needed and proves it accepts new files
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating '%s': %w", utils.ErrStorageUnwritable, dir, err)
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("%w: '%s': %w", utils.ErrStorageUnwritable, dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
