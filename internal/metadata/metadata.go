// Package metadata reads a fund's display name and identifier from a
// loaded product page. Extraction never fails the pipeline: any lookup
// problem yields the missing marker and the page is still attempted,
// though a fund without an identifier cannot be stored later.
package metadata

import (
	"log/slog"
	"strings"
	"time"

	"etfharvest/internal/browser"
	"etfharvest/internal/holdings"
	"etfharvest/internal/provider"
)

// Info is the per-fund metadata pair.
type Info struct {
	Name       string
	Identifier string
}

// Extract reads both fields via the profile's rules.
func Extract(page browser.Page, p *provider.Profile, timeout time.Duration) Info {
	info := Info{
		Name:       readRule(page, p.NameRule, timeout),
		Identifier: readRule(page, p.IdentifierRule, timeout),
	}
	if info.Name == holdings.Missing && info.Identifier == holdings.Missing {
		slog.Warn("metadata lookup failed entirely", "provider", p.Name)
	}
	return info
}

// readRule tries each candidate locator in order and applies the split
// rule to the first text found.
func readRule(page browser.Page, rule provider.TextRule, timeout time.Duration) string {
	for _, loc := range rule.Candidates {
		text, err := page.Text(loc, timeout)
		if err != nil {
			continue
		}
		if v := Apply(text, rule.Split); v != "" {
			return v
		}
	}
	return holdings.Missing
}

// Apply runs the deterministic split rule over raw element text. A nil
// rule just trims. Out-of-range indices yield the empty string so the
// caller can move on to the next candidate.
func Apply(text string, split *provider.SplitRule) string {
	text = strings.TrimSpace(text)
	if split == nil {
		return text
	}

	var parts []string
	if split.Sep == " " {
		parts = strings.Fields(text)
	} else {
		parts = strings.Split(text, split.Sep)
	}
	if split.Index < 0 || split.Index >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[split.Index])
}
