// Package collector drives a provider's listing page and returns the
// bounded set of candidate product-page URLs.
package collector

import (
	"log/slog"
	"net/url"
	"time"

	"etfharvest/internal/browser"
	"etfharvest/internal/config"
	"etfharvest/internal/provider"
)

// showMoreCap bounds the pagination loop so a misbehaving page whose
// affordance never disappears cannot stall the run.
const showMoreCap = 50

// RunConsent executes the profile's consent steps best-effort: each
// step is located and clicked with a short timeout, and a step that
// never appears is logged and skipped, never an error.
func RunConsent(page browser.Page, p *provider.Profile, timeout time.Duration) {
	for _, step := range p.ConsentSteps {
		if err := page.Click(step, timeout); err != nil {
			slog.Debug("consent step not found, skipping",
				"provider", p.Name, "selector", step.Css)
			continue
		}
		slog.Debug("consent step clicked", "provider", p.Name, "selector", step.Css)
	}
}

// Collect navigates the listing page, expands pagination and returns up
// to limit product URLs in DOM order. Failure to observe the listing's
// presence signal is fatal for this provider: the returned slice is
// empty and the caller skips the provider entirely.
func Collect(page browser.Page, p *provider.Profile, limit int, timeouts config.TimeoutsConfig) []string {
	if err := page.Goto(p.ListingURL, timeouts.Page); err != nil {
		slog.Error("failed to load listing page", "provider", p.Name, "err", err)
		return nil
	}

	RunConsent(page, p, timeouts.Consent)

	ready := provider.Locator{Css: p.ListingReadySelector}
	if err := page.WaitVisible(ready, timeouts.Selector); err != nil {
		slog.Error("listing rows never appeared, skipping provider",
			"provider", p.Name, "selector", p.ListingReadySelector, "err", err)
		return nil
	}

	if p.ShowMore != nil {
		for i := 0; i < showMoreCap && page.IsVisible(*p.ShowMore); i++ {
			if err := page.Click(*p.ShowMore, timeouts.Consent); err != nil {
				break
			}
			page.WaitIdle(timeouts.Selector)
		}
	}

	hrefs, err := page.Hrefs(p.ProductLinkSelector)
	if err != nil {
		slog.Error("failed to collect product links", "provider", p.Name, "err", err)
		return nil
	}

	urls := ResolveLinks(p.ListingURL, hrefs, p.RewriteProductURL, limit)
	slog.Info("collected product urls", "provider", p.Name, "count", len(urls))
	return urls
}

// ResolveLinks rewrites and resolves raw hrefs against the listing URL,
// deduplicates by exact string and truncates to limit (first N in DOM
// order; no ranking).
func ResolveLinks(listingURL string, hrefs []string, rewrite func(string) string, limit int) []string {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var urls []string
	for _, href := range hrefs {
		if rewrite != nil {
			href = rewrite(href)
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref).String()
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		urls = append(urls, resolved)
		if limit > 0 && len(urls) == limit {
			break
		}
	}
	return urls
}
