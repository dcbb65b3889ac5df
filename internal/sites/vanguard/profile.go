// Package vanguard registers the site profile for Vanguard's US ETF
// listing. The product pages key funds by ticker rather than ISIN, so
// the identifier rule reads the leading symbol from the dashboard
// heading.
package vanguard

import "etfharvest/internal/provider"

func init() {
	provider.Register(profile)
}

var profile = &provider.Profile{
	Name: "vanguard",

	ListingURL: "https://investor.vanguard.com/investment-products/list/etfs",
	ConsentSteps: []provider.Locator{
		{Css: "button#onetrust-accept-btn-handler"},
	},
	ListingReadySelector: "tr[data-rpa-tag-id]",
	ProductLinkSelector:  "tr[data-rpa-tag-id] a[data-rpa-tag-id='longName']",
	ShowMore:             &provider.Locator{Css: "button", Text: "Show more"},

	NameRule: provider.TextRule{
		Candidates: []provider.Locator{{Css: "span[data-rpa-tag-id='longName']"}},
	},
	IdentifierRule: provider.TextRule{
		Candidates: []provider.Locator{{Css: "h1[data-rpa-tag-id='dashboard-symbol']"}},
		Split:      &provider.SplitRule{Sep: " ", Index: 0},
	},

	FileColumnAliases: map[string]string{
		"name":        provider.ColName,
		"bezeichnung": provider.ColName,
		"weight":      provider.ColWeight,
		"gewichtung":  provider.ColWeight,
		"isin":        provider.ColISIN,
		"sector":      provider.ColSector,
		"asset class": provider.ColSecurityType,
		"country":     provider.ColCountry,
		"currency":    provider.ColCurrency,
	},
	FallbackDownloadLocator: "a[href*='holdings']",
}
