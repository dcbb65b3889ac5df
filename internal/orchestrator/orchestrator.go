// Package orchestrator sequences the whole run: per-provider URL
// collection, rate-limited batches of page visits, and the merge of
// results into per-provider and combined collections. A single URL's
// failure never aborts the run; only resource setup can.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"etfharvest/internal/browser"
	"etfharvest/internal/collector"
	"etfharvest/internal/config"
	"etfharvest/internal/holdings"
	"etfharvest/internal/normalizer"
	"etfharvest/internal/output"
	"etfharvest/internal/provider"
	"etfharvest/internal/resolver"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Session supplies fresh pages from the shared browser process.
// *browser.Browser satisfies it.
type Session interface {
	NewPage() (browser.Page, error)
}

// scrapeResult pairs a scraped fund with whether its page loaded at
// all; funds from pages that never loaded are dropped without the
// identifier-skip warning.
type scrapeResult struct {
	fund   holdings.Fund
	loaded bool
}

// Orchestrator owns one run over a set of provider profiles.
type Orchestrator struct {
	cfg      *config.Config
	session  Session
	resolver *resolver.Resolver
	norm     *normalizer.Normalizer
	writer   *output.Writer
}

func New(cfg *config.Config, session Session, res *resolver.Resolver) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		session:  session,
		resolver: res,
		norm:     normalizer.New(),
		writer:   output.NewWriter(cfg.Dirs.Output),
	}
}

// Run processes every profile in order and returns the combined
// collection. Providers whose listing never materializes are skipped;
// an error is returned only for resource setup failures.
func (o *Orchestrator) Run(ctx context.Context, profiles []*provider.Profile) (holdings.Combined, error) {
	for _, dir := range []string{o.cfg.Dirs.Output, o.cfg.Dirs.Staging} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	combined := holdings.Combined{}
	for _, p := range profiles {
		slog.Info("starting provider", "provider", p.Name)
		coll := o.runProvider(ctx, p)
		if len(coll) == 0 {
			slog.Warn("no funds collected", "provider", p.Name)
			continue
		}

		path, err := o.writer.WriteProvider(p.Name, coll)
		if err != nil {
			return nil, err
		}
		slog.Info("provider collection saved", "provider", p.Name, "funds", len(coll), "path", path)
		combined[p.Name] = coll
	}

	if len(combined) > 0 {
		path, err := o.writer.WriteCombined(combined)
		if err != nil {
			return nil, err
		}
		slog.Info("combined collection saved", "providers", len(combined), "path", path)
	}
	return combined, nil
}

// runProvider collects the provider's URLs and processes them in
// sequential batches. Items inside a batch run concurrently and may
// finish out of order; the collection is only written after the batch
// fully completes, so completion order never affects the stored result.
func (o *Orchestrator) runProvider(ctx context.Context, p *provider.Profile) holdings.Collection {
	page, err := o.session.NewPage()
	if err != nil {
		slog.Error("failed to open listing page", "provider", p.Name, "err", err)
		return nil
	}
	urls := collector.Collect(page, p, o.cfg.Limits.FundsPerProvider, o.cfg.Timeouts)
	page.Close()
	if len(urls) == 0 {
		return nil
	}

	coll := holdings.Collection{}
	batchSize := o.cfg.Limits.BatchSize
	limiter := rate.NewLimiter(rate.Every(o.cfg.Limits.BatchDelay), 1)

	for start := 0; start < len(urls); start += batchSize {
		if err := limiter.Wait(ctx); err != nil {
			slog.Warn("run cancelled", "provider", p.Name, "err", err)
			break
		}

		end := start + batchSize
		if end > len(urls) {
			end = len(urls)
		}
		batch := urls[start:end]

		results := make([]scrapeResult, len(batch))
		g := new(errgroup.Group)
		for i, url := range batch {
			i, url := i, url
			g.Go(func() error {
				results[i].fund, results[i].loaded = o.scrapeFund(ctx, p, url)
				return nil
			})
		}
		_ = g.Wait()

		for i, res := range results {
			if !res.loaded {
				// Already reported as a page failure.
				continue
			}
			if !coll.Store(res.fund) {
				// Distinct from an extraction failure: the page was
				// processed but there is no key to store it under.
				slog.Warn("skipping fund without identifier",
					"provider", p.Name, "url", batch[i], "name", res.fund.Name)
				continue
			}
			slog.Info("fund stored", "provider", p.Name,
				"isin", res.fund.ISIN, "name", res.fund.Name, "holdings", len(res.fund.Holdings))
		}
	}
	return coll
}

func (o *Orchestrator) capFor(p *provider.Profile) int {
	if cap, ok := o.cfg.HoldingsCaps[strings.ToLower(p.Name)]; ok {
		return cap
	}
	return p.HoldingsCap
}
