// Package resolver is the per-page extraction decision engine. Given a
// page's HTML it produces exactly one directive: download a file via a
// locator, treat classifier-extracted rows as the holdings, or report
// that no data exists. Every classifier failure mode degrades to the
// none directive; nothing here is fatal to the page.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"etfharvest/internal/classifier"
	"etfharvest/internal/provider"

	"github.com/PuerkitoBio/goquery"
)

// Resolver chooses the extraction method for one page at a time.
type Resolver struct {
	classifier  classifier.Classifier
	maxFragment int
}

func New(c classifier.Classifier, maxFragmentBytes int) *Resolver {
	return &Resolver{classifier: c, maxFragment: maxFragmentBytes}
}

// Resolve scopes the page HTML, consults the classifier and returns the
// directive for this page. A download directive always carries a
// non-empty selector: when the classifier omits one, the profile's
// fallback locator is substituted, and if the profile has none either,
// the directive degrades to none.
func (r *Resolver) Resolve(ctx context.Context, pageHTML string, p *provider.Profile) classifier.Directive {
	fragment, err := r.BuildScope(pageHTML, p.HoldingsScopeSelectors)
	if err != nil {
		slog.Warn("failed to scope page html, using raw truncation",
			"provider", p.Name, "err", err)
		fragment = truncate(pageHTML, r.maxFragment)
	}

	directive, err := r.classifier.Classify(ctx, fragment)
	if err != nil {
		slog.Warn("classifier failed, degrading to none",
			"provider", p.Name, "err", err)
		return classifier.Directive{Action: classifier.ActionNone}
	}

	if directive.Action == classifier.ActionDownload && strings.TrimSpace(directive.Selector) == "" {
		if p.FallbackDownloadLocator == "" {
			slog.Warn("download directive without selector and no fallback locator",
				"provider", p.Name)
			return classifier.Directive{Action: classifier.ActionNone}
		}
		slog.Info("substituting fallback download locator",
			"provider", p.Name, "locator", p.FallbackDownloadLocator)
		directive.Selector = p.FallbackDownloadLocator
	}

	return directive
}

// BuildScope extracts the HTML fragment shown to the classifier. Scope
// selectors are tried in order; the body is the last resort. Oversized
// fragments are truncated deterministically by keeping the largest
// top-level children of the scope, by serialized length descending,
// until the size ceiling is reached.
func (r *Resolver) BuildScope(pageHTML string, scopeSelectors []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse page html: %w", err)
	}

	scope := doc.Find("body").First()
	for _, sel := range scopeSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			scope = found
			break
		}
	}
	if scope.Length() == 0 {
		return "", fmt.Errorf("page has no body")
	}

	full, err := goquery.OuterHtml(scope)
	if err != nil {
		return "", fmt.Errorf("failed to serialize scope: %w", err)
	}
	if len(full) <= r.maxFragment {
		return full, nil
	}

	type chunk struct {
		order int
		html  string
	}
	var chunks []chunk
	scope.Children().Each(func(i int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			chunks = append(chunks, chunk{order: i, html: html})
		}
	})
	if len(chunks) == 0 {
		return truncate(full, r.maxFragment), nil
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return len(chunks[i].html) > len(chunks[j].html)
	})

	var kept []chunk
	budget := r.maxFragment
	for _, c := range chunks {
		if len(c.html) > budget {
			continue
		}
		kept = append(kept, c)
		budget -= len(c.html)
	}
	if len(kept) == 0 {
		// Even the smallest child exceeds the ceiling; keep a hard
		// prefix of the largest one.
		return truncate(chunks[0].html, r.maxFragment), nil
	}

	// Preserve document order among the kept children.
	sort.Slice(kept, func(i, j int) bool { return kept[i].order < kept[j].order })

	var sb strings.Builder
	for _, c := range kept {
		sb.WriteString(c.html)
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
