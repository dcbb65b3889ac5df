package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"etfharvest/internal/browser"
	"etfharvest/internal/classifier"
	"etfharvest/internal/config"
	"etfharvest/internal/holdings"
	"etfharvest/internal/provider"
	"etfharvest/internal/resolver"

	"github.com/stretchr/testify/require"
)

// pageScript describes one fake product page.
type pageScript struct {
	texts        map[string]string
	html         string
	downloadFile []byte
	downloadName string
}

// fakeSite scripts a whole provider: a listing page plus product pages.
type fakeSite struct {
	listingURL   string
	listingHrefs []string
	pages        map[string]*pageScript
}

func (s *fakeSite) NewPage() (browser.Page, error) {
	return &fakePage{site: s}, nil
}

type fakePage struct {
	site    *fakeSite
	current *pageScript
}

func (f *fakePage) Goto(url string, _ time.Duration) error {
	if url == f.site.listingURL {
		f.current = nil
		return nil
	}
	script, ok := f.site.pages[url]
	if !ok {
		return fmt.Errorf("navigation failed for %s", url)
	}
	f.current = script
	return nil
}

func (f *fakePage) WaitVisible(provider.Locator, time.Duration) error { return nil }
func (f *fakePage) Click(provider.Locator, time.Duration) error       { return nil }
func (f *fakePage) IsVisible(provider.Locator) bool                   { return false }
func (f *fakePage) WaitIdle(time.Duration)                            {}
func (f *fakePage) Close()                                            {}

func (f *fakePage) Text(loc provider.Locator, _ time.Duration) (string, error) {
	if f.current == nil {
		return "", fmt.Errorf("no page loaded")
	}
	if text, ok := f.current.texts[loc.Css]; ok {
		return text, nil
	}
	return "", fmt.Errorf("element %q not found", loc.Css)
}

func (f *fakePage) HTML() (string, error) {
	if f.current == nil {
		return "", fmt.Errorf("no page loaded")
	}
	return f.current.html, nil
}

func (f *fakePage) Hrefs(string) ([]string, error) { return f.site.listingHrefs, nil }

func (f *fakePage) Download(_ provider.Locator, dir string, _ time.Duration) (string, error) {
	if f.current == nil || f.current.downloadFile == nil {
		return "", fmt.Errorf("download timed out")
	}
	path := filepath.Join(dir, f.current.downloadName)
	if err := os.WriteFile(path, f.current.downloadFile, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// markerClassifier routes on content markers embedded in the fragment.
type markerClassifier struct{}

func (markerClassifier) Classify(_ context.Context, fragment string) (classifier.Directive, error) {
	switch {
	case strings.Contains(fragment, "marker-download"):
		return classifier.ParseResponse(`{"action":"download","selector":"a.holdings-export"}`)
	case strings.Contains(fragment, "marker-extract"):
		return classifier.ParseResponse(`{"action":"extract","holdings":[
			{"name":"Nestle SA","weight":"2,95%"},
			{"name":"ASML Holding NV","weight":3.4},
			{"name":"Novo Nordisk","weight":"2.8"},
			{"name":"","weight":"1.0"},
			{"name":"Roche Holding AG","weight":"??"},
			{"name":"LVMH SE","weight":"2.1"}
		]}`)
	default:
		return classifier.ParseResponse(`{"action":"none"}`)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Limits: config.LimitsConfig{FundsPerProvider: 5, BatchSize: 1, BatchDelay: time.Millisecond},
		Timeouts: config.TimeoutsConfig{
			Page: time.Second, Selector: time.Second, Consent: time.Second, Download: time.Second,
		},
		Dirs: config.DirsConfig{
			Output:  filepath.Join(t.TempDir(), "out"),
			Staging: filepath.Join(t.TempDir(), "staging"),
		},
	}
}

func testProfile(listingURL string) *provider.Profile {
	return &provider.Profile{
		Name:                 "testsite",
		ListingURL:           listingURL,
		ListingReadySelector: "tr.fund-row",
		ProductLinkSelector:  "tr.fund-row a",
		NameRule:             provider.TextRule{Candidates: []provider.Locator{{Css: "h1"}}},
		IdentifierRule:       provider.TextRule{Candidates: []provider.Locator{{Css: "div.isin"}}},
		FileColumnAliases: map[string]string{
			"name":       provider.ColName,
			"gewichtung": provider.ColWeight,
			"isin":       provider.ColISIN,
		},
	}
}

func downloadCSV() []byte {
	var sb strings.Builder
	sb.WriteString("Fund composition export\n")
	sb.WriteString("Stand: 31.12.2025\n")
	sb.WriteString("Name,ISIN,Gewichtung (%)\n")
	for i := 0; i < 12; i++ {
		sb.WriteString(fmt.Sprintf("Security %02d,US%010d,1.%02d\n", i, i, i))
	}
	sb.WriteString("Broken Row,US9999999999,not-a-number\n")
	return []byte(sb.String())
}

// The end-to-end scenario: page one offers a CSV download with a header
// at row offset two and one bad row; page two only renders a table the
// classifier extracts (four of six rows valid); page three has no data.
func scenarioSite(pageThreeTexts map[string]string) *fakeSite {
	listing := "https://funds.example.com/list"
	return &fakeSite{
		listingURL:   listing,
		listingHrefs: []string{"/etf/one", "/etf/two", "/etf/three"},
		pages: map[string]*pageScript{
			"https://funds.example.com/etf/one": {
				texts:        map[string]string{"h1": "Fund One", "div.isin": "IE0000000001"},
				html:         `<html><body><div>marker-download</div></body></html>`,
				downloadFile: downloadCSV(),
				downloadName: "holdings.csv",
			},
			"https://funds.example.com/etf/two": {
				texts: map[string]string{"h1": "Fund Two", "div.isin": "IE0000000002"},
				html:  `<html><body><div>marker-extract</div></body></html>`,
			},
			"https://funds.example.com/etf/three": {
				texts: pageThreeTexts,
				html:  `<html><body><div>nothing here</div></body></html>`,
			},
		},
	}
}

func runScenario(t *testing.T, site *fakeSite, cfg *config.Config) holdings.Combined {
	t.Helper()
	o := New(cfg, site, resolver.New(markerClassifier{}, 1<<20))
	combined, err := o.Run(context.Background(), []*provider.Profile{testProfile(site.listingURL)})
	require.NoError(t, err)
	return combined
}

func TestRunScenario(t *testing.T) {
	t.Run("page three identifier unresolved contributes nothing", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})
		combined := runScenario(t, site, testConfig(t))

		coll := combined["testsite"]
		require.Len(t, coll, 2)
		require.Len(t, coll["IE0000000001"].Holdings, 12)
		require.Len(t, coll["IE0000000002"].Holdings, 4)
	})

	t.Run("page three identifier resolved stores empty holdings", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three", "div.isin": "IE0000000003"})
		combined := runScenario(t, site, testConfig(t))

		coll := combined["testsite"]
		require.Len(t, coll, 3)
		require.Empty(t, coll["IE0000000003"].Holdings)
		require.Equal(t, "Fund Three", coll["IE0000000003"].Name)
	})

	t.Run("normalized rows respect the weight invariant", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})
		combined := runScenario(t, site, testConfig(t))

		for _, coll := range combined {
			for _, fund := range coll {
				for _, rec := range fund.Holdings {
					require.GreaterOrEqual(t, rec.Weight, 0.0)
					require.NotEmpty(t, rec.Name)
				}
			}
		}
	})

	t.Run("download failure falls back to page table", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})
		one := site.pages["https://funds.example.com/etf/one"]
		one.downloadFile = nil
		one.html = `<html><body><div>marker-download</div><table><tbody>
			<tr><td>Apple Inc</td><td>5,3%</td></tr>
			<tr><td>Broken</td><td>n/a</td></tr>
		</tbody></table></body></html>`

		combined := runScenario(t, site, testConfig(t))
		fund := combined["testsite"]["IE0000000001"]
		require.Len(t, fund.Holdings, 1)
		require.Equal(t, "Apple Inc", fund.Holdings[0].Name)
		require.Equal(t, 5.3, fund.Holdings[0].Weight)
	})

	t.Run("holdings cap truncates deterministically", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})
		cfg := testConfig(t)
		cfg.HoldingsCaps = map[string]int{"testsite": 5}

		combined := runScenario(t, site, cfg)
		fund := combined["testsite"]["IE0000000001"]
		require.Len(t, fund.Holdings, 5)
		for i, rec := range fund.Holdings {
			require.Equal(t, fmt.Sprintf("Security %02d", i), rec.Name)
		}
	})

	t.Run("refetching the same isin keeps one entry", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})
		// A fourth link whose page resolves to the same ISIN as page two.
		site.listingHrefs = append(site.listingHrefs, "/etf/two-again")
		site.pages["https://funds.example.com/etf/two-again"] = &pageScript{
			texts: map[string]string{"h1": "Fund Two (refetch)", "div.isin": "IE0000000002"},
			html:  `<html><body><div>nothing here</div></body></html>`,
		}

		combined := runScenario(t, site, testConfig(t))
		coll := combined["testsite"]
		require.Len(t, coll, 2)
		require.Equal(t, "Fund Two (refetch)", coll["IE0000000002"].Name)
		require.Empty(t, coll["IE0000000002"].Holdings)
	})

	t.Run("staging files are cleaned up", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})
		cfg := testConfig(t)
		runScenario(t, site, cfg)

		entries, err := os.ReadDir(cfg.Dirs.Staging)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("provider and combined documents are written", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})
		cfg := testConfig(t)
		runScenario(t, site, cfg)

		entries, err := os.ReadDir(cfg.Dirs.Output)
		require.NoError(t, err)
		require.Len(t, entries, 2)
	})

	t.Run("navigation failure is not reported as an identifier skip", func(t *testing.T) {
		// Every resolvable page carries an identifier; the only anomaly
		// is a link whose page never loads.
		site := scenarioSite(map[string]string{"h1": "Fund Three", "div.isin": "IE0000000003"})
		site.listingHrefs = append(site.listingHrefs, "/etf/gone")

		var buf bytes.Buffer
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
		defer slog.SetDefault(prev)

		combined := runScenario(t, site, testConfig(t))

		require.Len(t, combined["testsite"], 3)
		logs := buf.String()
		require.Contains(t, logs, "failed to load product page")
		require.NotContains(t, logs, "skipping fund without identifier")
	})

	t.Run("loaded page without identifier is reported as a skip", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})

		var buf bytes.Buffer
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
		defer slog.SetDefault(prev)

		runScenario(t, site, testConfig(t))
		require.Contains(t, buf.String(), "skipping fund without identifier")
	})

	t.Run("parallel batch mode produces the same collection", func(t *testing.T) {
		site := scenarioSite(map[string]string{"h1": "Fund Three"})
		cfg := testConfig(t)
		cfg.Limits.BatchSize = 3

		combined := runScenario(t, site, cfg)
		require.Len(t, combined["testsite"], 2)
	})
}
