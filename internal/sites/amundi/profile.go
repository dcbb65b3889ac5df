// Package amundi registers the site profile for the Amundi ETF search.
// The hero heading varies across product templates, so the name rule
// carries an ordered candidate list, and the identifier is the ISIN
// half of the combined "ISIN / WKN" cell.
package amundi

import "etfharvest/internal/provider"

func init() {
	provider.Register(profile)
}

var profile = &provider.Profile{
	Name: "amundi",

	ListingURL: "https://www.amundietf.de/de/professionell/etf-products/search",
	ConsentSteps: []provider.Locator{
		{Css: `button[data-profile="INSTIT"]`},
		{Css: "button", Text: "Akzeptieren und fortfahren"},
		{Css: "button", Text: "Alle annehmen"},
	},
	ListingReadySelector: "div.FinderResultsSection__Datatable table tbody tr",
	ProductLinkSelector:  "div.FinderResultsSection__Datatable table tbody tr td a",

	NameRule: provider.TextRule{
		Candidates: []provider.Locator{
			{Css: "h1.ProductHero__title"},
			{Css: "h1.text-uppercase"},
			{Css: "h1"},
		},
	},
	IdentifierRule: provider.TextRule{
		Candidates: []provider.Locator{{Css: "div.m-isin-wkn"}},
		Split:      &provider.SplitRule{Sep: "/", Index: 0},
	},

	FileColumnAliases: map[string]string{
		"name":                  provider.ColName,
		"bezeichnung":           provider.ColName,
		"wertpapierbezeichnung": provider.ColName,
		"währung":               provider.ColCurrency,
		"currency":              provider.ColCurrency,
		"gewichtung":            provider.ColWeight,
		"weight":                provider.ColWeight,
		"sektor":                provider.ColSector,
		"sector":                provider.ColSector,
		"branche":               provider.ColSector,
		"anlageklasse":          provider.ColSecurityType,
		"asset class":           provider.ColSecurityType,
		"land":                  provider.ColCountry,
		"country":               provider.ColCountry,
		"isin":                  provider.ColISIN,
	},
	FallbackDownloadLocator: `a[class*="download"]`,
}
