package holdings

// Record is one constituent security of a fund. Weight is always in
// percentage units on a 0-100 scale; rows whose weight cannot be coerced
// to a finite non-negative float are dropped before a Record is built,
// so a stored Record never carries a null or bogus weight.
type Record struct {
	Name         string  `json:"name"`
	ISIN         string  `json:"isin"`
	Sector       string  `json:"sector"`
	SecurityType string  `json:"securityType"`
	Weight       float64 `json:"weight"`
	Currency     string  `json:"currency"`
	Country      string  `json:"country"`
}

// Missing is the placeholder for optional fields that could not be
// resolved from any source.
const Missing = "N/A"

// NewRecord returns a Record with every optional field defaulted to Missing.
func NewRecord(name string, weight float64) Record {
	return Record{
		Name:         name,
		ISIN:         Missing,
		Sector:       Missing,
		SecurityType: Missing,
		Weight:       weight,
		Currency:     Missing,
		Country:      Missing,
	}
}

// Fund is one scraped product page: identifier, display name and the
// holdings recovered for it (possibly none).
type Fund struct {
	ISIN     string   `json:"isin"`
	Name     string   `json:"name"`
	Holdings []Record `json:"holdings"`
}

// Cap truncates the holdings to the first n in source order. n <= 0
// means no cap.
func (f *Fund) Cap(n int) {
	if n > 0 && len(f.Holdings) > n {
		f.Holdings = f.Holdings[:n]
	}
}

// Collection maps ISIN to Fund for a single provider. Storing a fund
// under an ISIN that is already present replaces the prior entry.
type Collection map[string]Fund

// Store inserts the fund keyed by its ISIN, last write wins. Funds
// without a usable identifier are rejected: there is no key to store
// them under.
func (c Collection) Store(f Fund) bool {
	if f.ISIN == "" || f.ISIN == Missing {
		return false
	}
	c[f.ISIN] = f
	return true
}

// Combined maps provider name to that provider's collection.
type Combined map[string]Collection
