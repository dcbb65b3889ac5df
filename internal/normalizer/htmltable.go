package normalizer

import (
	"strings"

	"etfharvest/internal/classifier"
	"etfharvest/internal/holdings"

	"github.com/PuerkitoBio/goquery"
)

// FallbackRowCap bounds how many table rows the raw-DOM fallback will
// consider. The fallback contract is "best available", not "complete".
const FallbackRowCap = 20

// ParseFallback scans the first DOM table on the page with structural
// heuristics: first cell is the name, last cell is the weight
// candidate. Rows with fewer than two populated cells or an unparsable
// weight are skipped silently. Used only when a chosen download failed.
func ParseFallback(pageHTML string, maxRows int) []holdings.Record {
	if maxRows <= 0 {
		maxRows = FallbackRowCap
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil
	}

	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr")
	}

	var records []holdings.Record
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(records) >= maxRows {
			return false
		}

		var cells []string
		row.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if len(cells) < 2 {
			return true
		}

		weight, ok := holdings.ParseWeight(cells[len(cells)-1])
		if cells[0] == "" || !ok {
			return true
		}

		records = append(records, holdings.NewRecord(cells[0], weight))
		return true
	})
	return records
}

// ValidateRaw filters classifier-supplied rows into canonical records.
// When the classifier already extracted the table this is a validator,
// not a parser: names must be present, weights must coerce, optional
// fields default to the missing marker.
func ValidateRaw(raw []classifier.RawHolding) []holdings.Record {
	var records []holdings.Record
	for _, r := range raw {
		name := strings.TrimSpace(r.Name)
		weight, ok := holdings.ParseWeight(r.Weight.String())
		if name == "" || !ok {
			continue
		}

		rec := holdings.NewRecord(name, weight)
		if v := strings.TrimSpace(r.ISIN); v != "" {
			rec.ISIN = v
		}
		if v := strings.TrimSpace(r.Sector); v != "" {
			rec.Sector = v
		}
		if v := strings.TrimSpace(r.SecurityType); v != "" {
			rec.SecurityType = v
		}
		if v := strings.TrimSpace(r.Currency); v != "" {
			rec.Currency = v
		}
		if v := strings.TrimSpace(r.Country); v != "" {
			rec.Country = v
		}
		records = append(records, rec)
	}
	return records
}

// EnrichISIN backfills record ISINs from the page's full holdings
// table. The iShares download file names securities but omits their
// ISINs; the rendered table carries both.
func EnrichISIN(records []holdings.Record, pageHTML string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return
	}

	isins := map[string]string{}
	doc.Find("table#allHoldingsTable tbody tr").Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find("td.colIssueName").First().Text())
		isin := strings.TrimSpace(row.Find("td.colIsin").First().Text())
		if name != "" && isin != "" {
			isins[name] = isin
		}
	})
	if len(isins) == 0 {
		return
	}

	for i := range records {
		if records[i].ISIN == holdings.Missing {
			if isin, ok := isins[records[i].Name]; ok {
				records[i].ISIN = isin
			}
		}
	}
}
