// Package xtrackers registers the site profile for the DWS Xtrackers
// product finder. The identifier sits in a labelled header row
// ("ISIN: LU..."), and the product pages are heavy enough that the
// classifier fragment is scoped to main and size-truncated.
package xtrackers

import "etfharvest/internal/provider"

func init() {
	provider.Register(profile)
}

var profile = &provider.Profile{
	Name: "xtrackers",

	ListingURL: "https://etf.dws.com/de-de/produktfinder/",
	ConsentSteps: []provider.Locator{
		{Css: "button", Text: "Accept all cookies"},
		{Css: "button", Text: "Akzeptieren & weiter"},
	},
	ListingReadySelector: `td a.d-base-link[href*="/de-de/LU"]`,
	ProductLinkSelector:  `td a.d-base-link[href*="/de-de/LU"]`,

	NameRule: provider.TextRule{
		Candidates: []provider.Locator{{Css: "h1#product-header-title"}},
	},
	IdentifierRule: provider.TextRule{
		Candidates: []provider.Locator{{Css: "div.product-header__identifier__row", Text: "ISIN"}},
		Split:      &provider.SplitRule{Sep: ":", Index: 1},
	},

	HoldingsScopeSelectors: []string{"main"},

	FileColumnAliases: map[string]string{
		"name":        provider.ColName,
		"bezeichnung": provider.ColName,
		"weight":      provider.ColWeight,
		"gewichtung":  provider.ColWeight,
		"isin":        provider.ColISIN,
		"sector":      provider.ColSector,
		"sektor":      provider.ColSector,
		"country":     provider.ColCountry,
		"land":        provider.ColCountry,
		"currency":    provider.ColCurrency,
		"währung":     provider.ColCurrency,
	},
	FallbackDownloadLocator: `a[href*="/excel/index/constituent/"]`,
}
