package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"etfharvest/internal/browser"
	"etfharvest/internal/classifier"
	"etfharvest/internal/config"
	"etfharvest/internal/orchestrator"
	"etfharvest/internal/provider"
	"etfharvest/internal/resolver"
	_ "etfharvest/internal/sites/amundi"
	_ "etfharvest/internal/sites/ishares"
	_ "etfharvest/internal/sites/vanguard"
	_ "etfharvest/internal/sites/xtrackers"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	providers  []string
	limit      int
	batchSize  int
	batchDelay time.Duration
	outputDir  string
	stagingDir string
	showUI     bool
	proxyURL   string
	verbose    bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "etfharvest",
		Short:   "Extract ETF holdings from provider websites",
		Version: version,
		Long: `etfharvest visits ETF provider websites with a real browser, lets a
language-model classifier decide how each product page exposes its
holdings (file download or rendered table), and normalizes the result
into per-provider and combined JSON collections.`,
		Example: `  # Scrape every registered provider with defaults
  etfharvest

  # Only iShares and Xtrackers, five funds each
  etfharvest --providers ishares,xtrackers --limit 5

  # Watch the browser while debugging a provider
  etfharvest --providers amundi --showui -v`,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	rootCmd.Flags().StringSliceVar(&providers, "providers", nil, "Providers to scrape (default: all registered)")
	rootCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Max funds per provider (0 = config value)")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Pages scraped concurrently per batch (0 = config value)")
	rootCmd.Flags().DurationVar(&batchDelay, "batch-delay", 0, "Pause between batches (0 = config value)")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for JSON collections")
	rootCmd.Flags().StringVar(&stagingDir, "staging", "", "Directory for downloaded files")
	rootCmd.Flags().BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", "", "Proxy URL (e.g. http://127.0.0.1:7890)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg)

	profiles, err := selectProfiles(cfg)
	if err != nil {
		return err
	}

	b, err := browser.New(browser.Config{
		Headless: cfg.Browser.Headless && !showUI,
		ProxyURL: cfg.Browser.ProxyURL,
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer b.Close()

	gemini := classifier.NewGemini(cfg.Classifier.Model, cfg.Classifier.APIKey, cfg.Classifier.Timeout)
	res := resolver.New(gemini, cfg.Classifier.MaxFragmentBytes)

	combined, err := orchestrator.New(cfg, b, res).Run(context.Background(), profiles)
	if err != nil {
		return err
	}
	if len(combined) == 0 {
		slog.Warn("run finished with no data")
		return nil
	}
	slog.Info("run finished", "providers", len(combined))
	return nil
}

// applyFlags lets command-line flags override loaded config values.
func applyFlags(cfg *config.Config) {
	if limit > 0 {
		cfg.Limits.FundsPerProvider = limit
	}
	if batchSize > 0 {
		cfg.Limits.BatchSize = batchSize
	}
	if batchDelay > 0 {
		cfg.Limits.BatchDelay = batchDelay
	}
	if outputDir != "" {
		cfg.Dirs.Output = outputDir
	}
	if stagingDir != "" {
		cfg.Dirs.Staging = stagingDir
	}
	if proxyURL != "" {
		cfg.Browser.ProxyURL = proxyURL
	}
	if len(providers) > 0 {
		cfg.Providers = providers
	}
}

func selectProfiles(cfg *config.Config) ([]*provider.Profile, error) {
	if len(cfg.Providers) == 0 {
		return provider.All(), nil
	}
	var profiles []*provider.Profile
	for _, name := range cfg.Providers {
		p, ok := provider.Get(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return nil, fmt.Errorf("unknown provider: %s", name)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
