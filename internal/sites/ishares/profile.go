// Package ishares registers the site profile for the German iShares
// product finder. Collected hrefs carry tracking queries that must be
// replaced with the locale-passthrough pair, and the holdings CSV omits
// ISINs, which are joined back in from the rendered holdings table.
package ishares

import (
	"strings"

	"etfharvest/internal/provider"
)

func init() {
	provider.Register(profile)
}

var profile = &provider.Profile{
	Name: "ishares",

	ListingURL: "https://www.ishares.com/de/privatanleger/de/produkte/etf-investments#/?productView=all&pageNumber=1&sortColumn=totalFundSizeInMillions&sortDirection=desc&dataView=keyFacts&keyFacts=all",
	ConsentSteps: []provider.Locator{
		{Css: "#onetrust-accept-btn-handler"},
		{Css: `a[data-link-event="Accept t&c: individual"]`, Text: "Weiter"},
	},
	ListingReadySelector: "a.link-to-product-page",
	ProductLinkSelector:  "a.link-to-product-page",
	RewriteProductURL:    rewriteProductURL,

	NameRule: provider.TextRule{
		Candidates: []provider.Locator{{Css: "#fundHeader > header.main-header span.product-title-main"}},
	},
	IdentifierRule: provider.TextRule{
		Candidates: []provider.Locator{{Css: "div.col-isin div.data"}},
	},

	HoldingsScopeSelectors: []string{"div#holdings", "div#allHoldings"},

	FileColumnAliases: map[string]string{
		"name":         provider.ColName,
		"sektor":       provider.ColSector,
		"anlageklasse": provider.ColSecurityType,
		"gewichtung":   provider.ColWeight,
		"isin":         provider.ColISIN,
		"standort":     provider.ColCountry,
		"marktwährung": provider.ColCurrency,
	},
	FallbackDownloadLocator: "a.icon-xls-export",
	EnrichISINFromPage:      true,
}

// rewriteProductURL strips the listing's tracking query and appends the
// locale passthrough pair the product pages require.
func rewriteProductURL(href string) string {
	if i := strings.Index(href, "?"); i >= 0 {
		href = href[:i]
	}
	if strings.HasPrefix(href, "/") {
		href = "https://www.ishares.com" + href
	}
	return href + "?switchLocale=y&siteEntryPassthrough=true"
}
