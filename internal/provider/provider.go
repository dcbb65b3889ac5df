package provider

// Locator addresses an element on a page. Css is always set; Text
// optionally narrows the match to elements whose visible text matches
// the given regular expression, for sites that only distinguish targets
// by label.
type Locator struct {
	Css  string
	Text string
}

// SplitRule extracts an identifier embedded in free text: split on Sep
// and take the field at Index. This is a fixed parsing rule, not a
// heuristic, so it is specified exactly per provider.
type SplitRule struct {
	Sep   string
	Index int
}

// TextRule reads a text field via an ordered candidate list, first
// match wins, with an optional split applied to the matched text.
type TextRule struct {
	Candidates []Locator
	Split      *SplitRule
}

// Profile is the static per-site configuration. One immutable instance
// per provider, registered at init and never mutated afterwards.
type Profile struct {
	Name string

	// Listing page.
	ListingURL           string
	ConsentSteps         []Locator
	ListingReadySelector string
	ProductLinkSelector  string
	// ShowMore, when set, is clicked repeatedly until it disappears to
	// expand paginated listings.
	ShowMore *Locator
	// RewriteProductURL optionally rewrites a collected href before it
	// is resolved against the listing origin.
	RewriteProductURL func(href string) string

	// Product page metadata.
	NameRule       TextRule
	IdentifierRule TextRule

	// HoldingsScopeSelectors bound the HTML shown to the classifier,
	// tried in order; the full body is the implicit last resort.
	HoldingsScopeSelectors []string

	// FileColumnAliases maps lowercase header substrings of the
	// provider's download files onto canonical field names.
	FileColumnAliases map[string]string

	// FallbackDownloadLocator is substituted when the classifier asks
	// for a download but omits the selector.
	FallbackDownloadLocator string

	// EnrichISINFromPage joins normalized file rows against the page's
	// holdings table to backfill ISINs the file omits.
	EnrichISINFromPage bool

	// HoldingsCap truncates stored holdings to the first N rows,
	// 0 keeps every row. Overridable per run via configuration.
	HoldingsCap int
}

// Canonical column names used by FileColumnAliases values.
const (
	ColName         = "name"
	ColWeight       = "weight"
	ColISIN         = "isin"
	ColSector       = "sector"
	ColSecurityType = "securityType"
	ColCountry      = "country"
	ColCurrency     = "currency"
)
