package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/curricula-harvester/pkg/config"
	"github.com/Sriram-PR/curricula-harvester/pkg/crawler"
	"github.com/Sriram-PR/curricula-harvester/pkg/ledger"
	applog "github.com/Sriram-PR/curricula-harvester/pkg/log"
	"github.com/Sriram-PR/curricula-harvester/pkg/models"
	"github.com/Sriram-PR/curricula-harvester/pkg/orchestrate"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-sites":
		runListSites(os.Args[2:])
	case "manifest":
		runManifest(os.Args[2:])
	case "errors":
		runErrors(os.Args[2:])
	case "version":
		fmt.Printf("harvester %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `harvester - Curriculum document crawler

Usage:
  harvester <command> [options]

Commands:
  crawl       Crawl the configured sites and download their documents (resumes automatically)
  validate    Validate configuration file
  list-sites  List configured sites
  manifest    Rewrite the document manifest from the ledger
  errors      Show the recorded error log grouped by kind
  version     Show version info

Without -config the built-in list of state curriculum servers is used.
Run 'harvester <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path yields the built-in defaults.
// Fields absent from the file keep their defaults; Validate fills in the rest.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg := config.Defaults()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// loadAndValidateConfig loads the config file and applies defaults, writing warnings to warn.
func loadAndValidateConfig(path string, warn func(string)) (*config.AppConfig, error) {
	appCfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// splitSiteKeys parses a comma-separated -sites value
func splitSiteKeys(raw string) []string {
	var keys []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			keys = append(keys, s)
		}
	}
	return keys
}

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (default: built-in sites)")
	sites := fs.String("sites", "", "Comma-separated site keys to crawl (default: all)")
	logLevel := fs.String("loglevel", "info", "Log level (trace, debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: harvester crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  harvester crawl -config config.yaml\n")
		fmt.Fprintf(os.Stderr, "  harvester crawl -sites bayern,hamburg -loglevel debug\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := applog.NewLogger(*logLevel, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Finishing the current request and saving the ledger...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	os.Exit(doCrawl(ctx, *configFile, splitSiteKeys(*sites), log, os.Stdout))
}

// doCrawl runs a campaign and writes the final summary to stdout.
// Returns exit code: 1 for setup errors, 0 otherwise (per-document failures and cancellation included).
func doCrawl(ctx context.Context, configPath string, siteKeys []string, log *logrus.Logger, stdout io.Writer) int {
	if configPath != "" {
		log.Infof("Loading configuration from %s", configPath)
	}
	appCfg, err := loadAndValidateConfig(configPath, func(w string) { log.Warn(w) })
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}

	selected, err := orchestrate.SelectSites(appCfg, siteKeys)
	if err != nil {
		log.Errorf("Invalid site keys: %v", err)
		return 1
	}
	log.Infof("Global Config: MaxDepth:%d, PageTimeout:%v, DocumentTimeout:%v, RequestDelay:%v, SiteConcurrency:%d",
		appCfg.MaxDepth, appCfg.PageTimeout, appCfg.DocumentTimeout, appCfg.RequestDelay, appCfg.SiteConcurrency)
	log.Infof("Global Config Paths: StorageRoot:%s, StateDir:%s, Ledger:%s",
		appCfg.StorageRoot, appCfg.StateDir, appCfg.LedgerBackend)

	logEntry := log.WithField("component", "crawl")
	l, store, err := orchestrate.Preflight(*appCfg, logEntry)
	if err != nil {
		log.Errorf("Preflight failed: %v", err)
		return 1
	}
	defer store.Close()

	campaign := orchestrate.NewCampaign(*appCfg, selected, l, store, logEntry)
	summary := campaign.Run(ctx)

	fmt.Fprintf(stdout, "Found %d documents across %d site(s): %d new, %d existing, %d failed.\n",
		summary.Discovered, len(summary.Sites), summary.Downloaded, summary.Existing, summary.Failed)
	if summary.Manifest != "" {
		fmt.Fprintf(stdout, "Manifest: %s\n", summary.Manifest)
	}
	if summary.LedgerErr != nil {
		log.Errorf("Ledger could not be saved, progress of this run is lost: %v", summary.LedgerErr)
		return 1
	}
	if summary.Cancelled {
		log.Warn("Crawl cancelled gracefully, the next run resumes from the ledger.")
	}
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (default: built-in sites)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: harvester validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadAndValidateConfig(configPath, func(w string) { fmt.Fprintf(stdout, "WARN: %s\n", w) })
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	for _, site := range appCfg.Sites {
		fmt.Fprintf(stdout, "OK: [%s] %d seed(s), max_depth %d\n",
			site.Key, len(site.SeedURLs), config.GetEffectiveMaxDepth(site, *appCfg))
	}
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListSites handles the list-sites subcommand
func runListSites(args []string) {
	fs := flag.NewFlagSet("list-sites", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (default: built-in sites)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: harvester list-sites [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListSites(*configFile, os.Stdout, os.Stderr))
}

// doListSites lists sites in campaign order and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doListSites(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadAndValidateConfig(configPath, func(string) {})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	source := configPath
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintf(stdout, "Sites in %s:\n\n", source)
	for _, site := range appCfg.Sites {
		fmt.Fprintf(stdout, "  %s\n", site.Key)
		fmt.Fprintf(stdout, "    Name: %s\n", site.DisplayName())
		fmt.Fprintf(stdout, "    Seed URLs: %d\n", len(site.SeedURLs))
		if site.MaxDepth != nil {
			fmt.Fprintf(stdout, "    Max Depth: %d\n", *site.MaxDepth)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}

// openLedger loads the ledger named by the configuration without touching the network
func openLedger(appCfg *config.AppConfig) (*ledger.Ledger, func(), error) {
	store, err := ledger.OpenStore(*appCfg, applog.Discard())
	if err != nil {
		return nil, nil, err
	}
	l, err := ledger.Load(store)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("loading ledger from %s: %w", store.Location(), err)
	}
	return l, func() { _ = store.Close() }, nil
}

// runManifest handles the manifest subcommand
func runManifest(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (default: built-in sites)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: harvester manifest [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doManifest(*configFile, os.Stdout, os.Stderr))
}

// doManifest rebuilds <storage_root>/<manifest_filename> from the ledger.
// Returns exit code (0 = success, 1 = error).
func doManifest(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadAndValidateConfig(configPath, func(string) {})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	l, closeStore, err := openLedger(appCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeStore()

	logEntry := applog.NewLogger("warn", stderr).WithField("component", "manifest")
	manifest := crawler.BuildManifest(l.Documents(), appCfg.Sites, appCfg.StorageRoot, logEntry)
	path := filepath.Join(appCfg.StorageRoot, appCfg.ManifestFilename)
	if err := crawler.WriteManifest(path, manifest, logEntry); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %d documents to %s\n", manifest.TotalDocuments, path)
	return 0
}

// runErrors handles the errors subcommand
func runErrors(args []string) {
	fs := flag.NewFlagSet("errors", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (default: built-in sites)")
	since := fs.String("since", "", "Only show errors since a duration ago (24h) or a date (2006-01-02)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: harvester errors [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doErrors(*configFile, *since, time.Now(), os.Stdout, os.Stderr))
}

// doErrors prints the error log grouped by kind, largest group first.
// Returns exit code (0 = success, 1 = error).
func doErrors(configPath, since string, now time.Time, stdout, stderr io.Writer) int {
	cutoff, err := parseSince(since, now)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	appCfg, err := loadAndValidateConfig(configPath, func(string) {})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	l, closeStore, err := openLedger(appCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeStore()

	entries := l.ErrorsSince(cutoff)
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No errors recorded.")
		return 0
	}

	groups := make(map[string][]models.ErrorEntry)
	for _, e := range entries {
		kind := e.Kind
		if kind == "" {
			kind = "Unknown"
		}
		groups[kind] = append(groups[kind], e)
	}
	kinds := make([]string, 0, len(groups))
	for k := range groups {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if len(groups[kinds[i]]) != len(groups[kinds[j]]) {
			return len(groups[kinds[i]]) > len(groups[kinds[j]])
		}
		return kinds[i] < kinds[j]
	})

	fmt.Fprintf(stdout, "%d error(s) in %d kind(s)\n", len(entries), len(kinds))
	for _, kind := range kinds {
		fmt.Fprintf(stdout, "\n%s (%d)\n", kind, len(groups[kind]))
		for _, e := range groups[kind] {
			target := e.URL
			if target == "" {
				target = "site run"
			}
			fmt.Fprintf(stdout, "  %s [%s] %s: %s\n", e.Time.Format("2006-01-02 15:04"), e.Site, target, e.Error)
		}
	}
	return 0
}

// parseSince accepts a Go duration ("36h") counted back from now, a date, or an RFC 3339 timestamp
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid -since value '%s' (want a duration like 24h or a date like 2024-01-31)", s)
}
