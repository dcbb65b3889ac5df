package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"etfharvest/internal/browser"
	"etfharvest/internal/classifier"
	"etfharvest/internal/collector"
	"etfharvest/internal/holdings"
	"etfharvest/internal/metadata"
	"etfharvest/internal/normalizer"
	"etfharvest/internal/provider"
)

// holdingsTabCandidates are the composition-tab affordances seen across
// providers, clicked best-effort before the page content is captured.
var holdingsTabCandidates = []provider.Locator{
	{Css: `a[href="#holdings"]`},
	{Css: "a", Text: "Zusammensetzung"},
	{Css: `li[data-tab="holdings"]`},
}

// scrapeFund runs the per-page pipeline for one product URL. It never
// returns an error: every failure degrades to a fund with whatever was
// recovered, and a fund without an identifier is rejected at store
// time. The second return value reports whether the page was actually
// processed, so callers can tell a page that never loaded apart from a
// loaded page that yielded no identifier.
func (o *Orchestrator) scrapeFund(ctx context.Context, p *provider.Profile, url string) (holdings.Fund, bool) {
	fund := holdings.Fund{
		ISIN:     holdings.Missing,
		Name:     holdings.Missing,
		Holdings: []holdings.Record{},
	}

	page, err := o.session.NewPage()
	if err != nil {
		slog.Error("failed to create page", "provider", p.Name, "url", url, "err", err)
		return fund, false
	}
	defer page.Close()

	if err := page.Goto(url, o.cfg.Timeouts.Page); err != nil {
		slog.Error("failed to load product page", "provider", p.Name, "url", url, "err", err)
		return fund, false
	}

	collector.RunConsent(page, p, o.cfg.Timeouts.Consent)

	info := metadata.Extract(page, p, o.cfg.Timeouts.Selector)
	fund.ISIN, fund.Name = info.Identifier, info.Name
	slog.Info("found fund", "provider", p.Name, "name", fund.Name, "identifier", fund.ISIN)

	o.openHoldingsTab(page)

	html, err := page.HTML()
	if err != nil {
		slog.Warn("failed to capture page content", "provider", p.Name, "url", url, "err", err)
		return fund, true
	}

	directive := o.resolver.Resolve(ctx, html, p)
	switch directive.Action {
	case classifier.ActionDownload:
		fund.Holdings = o.executeDownload(page, p, directive.Selector, html)
	case classifier.ActionExtract:
		fund.Holdings = normalizer.ValidateRaw(directive.Holdings)
		slog.Info("holdings extracted from page table",
			"provider", p.Name, "url", url, "rows", len(fund.Holdings))
	case classifier.ActionNone:
		slog.Info("no holdings data on page", "provider", p.Name, "url", url)
	}
	if fund.Holdings == nil {
		fund.Holdings = []holdings.Record{}
	}

	fund.Cap(o.capFor(p))
	slog.Info("page processed", "provider", p.Name, "url", url,
		"identifier", fund.ISIN, "holdings", len(fund.Holdings))
	return fund, true
}

// openHoldingsTab clicks the first visible composition tab and waits
// for the content it loads. Pages that render holdings inline have no
// tab; that is not an error.
func (o *Orchestrator) openHoldingsTab(page browser.Page) {
	for _, tab := range holdingsTabCandidates {
		if !page.IsVisible(tab) {
			continue
		}
		if err := page.Click(tab, o.cfg.Timeouts.Consent); err != nil {
			continue
		}
		page.WaitIdle(o.cfg.Timeouts.Selector)
		return
	}
}

// executeDownload clicks the chosen locator, normalizes the resulting
// file and guarantees the staged file is removed. A failed download
// degrades to the raw HTML table fallback; a file that normalizes to
// nothing stays empty, preserving partial success.
func (o *Orchestrator) executeDownload(page browser.Page, p *provider.Profile, selector, pageHTML string) []holdings.Record {
	path, err := page.Download(provider.Locator{Css: selector}, o.cfg.Dirs.Staging, o.cfg.Timeouts.Download)
	if err != nil {
		slog.Warn("download failed, attempting html table fallback",
			"provider", p.Name, "selector", selector, "err", err)
		return normalizer.ParseFallback(pageHTML, 0)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read downloaded file, attempting html table fallback",
			"provider", p.Name, "path", path, "err", err)
		return normalizer.ParseFallback(pageHTML, 0)
	}

	records, err := o.norm.Normalize(data, filepath.Base(path), p)
	if err != nil {
		slog.Warn("failed to normalize downloaded file",
			"provider", p.Name, "path", path, "err", err)
		return nil
	}

	if p.EnrichISINFromPage {
		normalizer.EnrichISIN(records, pageHTML)
	}
	slog.Info("holdings normalized from download",
		"provider", p.Name, "rows", len(records))
	return records
}
