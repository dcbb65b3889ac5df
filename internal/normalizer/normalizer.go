// Package normalizer turns provider holdings files and page tables into
// canonical records. Providers disagree on everything: header language,
// preamble rows, decimal separators, percent signs, column order. The
// rules here are deterministic; rows that cannot be coerced are dropped,
// never defaulted.
package normalizer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"etfharvest/internal/holdings"
	"etfharvest/internal/provider"

	"github.com/xuri/excelize/v2"
)

// headerKeywords is the fixed vocabulary used to find the real column
// header among banner and legal preamble rows.
var headerKeywords = []string{
	"isin", "name", "bezeichnung", "country", "land", "sector", "sektor",
	"weight", "gewichtung", "currency", "währung", "ticker",
	"emittententicker", "anlageklasse",
}

var (
	zipSignature = []byte("PK\x03\x04")
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Normalizer maps downloaded holdings files onto canonical records.
type Normalizer struct {
	// MinHeaderKeywords is the number of distinct keyword hits a row
	// needs to be accepted as the header. Two avoids false positives
	// on preamble rows that mention a single incidental keyword.
	MinHeaderKeywords int
}

func New() *Normalizer {
	return &Normalizer{MinHeaderKeywords: 2}
}

// Normalize parses fileBytes into records using the profile's column
// aliases. A file without a detectable header row, or without a weight
// column, yields an error; callers treat that as an empty, reported,
// non-fatal outcome. Output preserves file row order.
func (n *Normalizer) Normalize(fileBytes []byte, filename string, p *provider.Profile) ([]holdings.Record, error) {
	rows, err := n.tabulate(fileBytes, filename)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file %s is empty", filename)
	}

	headerIdx := n.findHeaderRow(rows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("no header row found in %s", filename)
	}

	columns := mapColumns(rows[headerIdx], p.FileColumnAliases)
	weightCol, hasWeight := columns[provider.ColWeight]
	nameCol, hasName := columns[provider.ColName]
	if !hasWeight || !hasName {
		return nil, fmt.Errorf("required columns missing in %s: have %v", filename, rows[headerIdx])
	}

	var records []holdings.Record
	for _, row := range rows[headerIdx+1:] {
		name := cell(row, nameCol)
		weight, ok := holdings.ParseWeight(cell(row, weightCol))
		if name == "" || !ok {
			continue
		}

		rec := holdings.NewRecord(name, weight)
		setOptional(&rec.ISIN, row, columns, provider.ColISIN)
		setOptional(&rec.Sector, row, columns, provider.ColSector)
		setOptional(&rec.SecurityType, row, columns, provider.ColSecurityType)
		setOptional(&rec.Currency, row, columns, provider.ColCurrency)
		setOptional(&rec.Country, row, columns, provider.ColCountry)
		records = append(records, rec)
	}
	return records, nil
}

// tabulate converts the file into rows of cells, detecting the file
// kind by extension first and content signature second.
func (n *Normalizer) tabulate(fileBytes []byte, filename string) ([][]string, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls") || bytes.HasPrefix(fileBytes, zipSignature):
		if bytes.HasPrefix(fileBytes, oleSignature) {
			return nil, fmt.Errorf("legacy .xls format is not supported: %s", filename)
		}
		return readSpreadsheet(fileBytes)
	default:
		return n.readDelimited(fileBytes)
	}
}

func readSpreadsheet(fileBytes []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet rows: %w", err)
	}
	return rows, nil
}

// readDelimited parses CSV-like text. The delimiter is sniffed from the
// detected header line because preamble rows may contain arbitrary
// punctuation; German exports commonly use semicolons.
func (n *Normalizer) readDelimited(fileBytes []byte) ([][]string, error) {
	text := strings.TrimPrefix(string(fileBytes), "\ufeff")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	headerLine := -1
	for i, line := range lines {
		if countKeywords([]string{line}) >= n.MinHeaderKeywords {
			headerLine = i
			break
		}
	}
	if headerLine < 0 {
		// Let the row-level scan report the missing header uniformly.
		headerLine = 0
	}

	delim := ','
	if strings.Count(lines[headerLine], ";") > strings.Count(lines[headerLine], ",") {
		delim = ';'
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerLine:], "\n")))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse delimited file: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// findHeaderRow returns the index of the first row with enough distinct
// keyword hits, or -1.
func (n *Normalizer) findHeaderRow(rows [][]string) int {
	for i, row := range rows {
		if countKeywords(row) >= n.MinHeaderKeywords {
			return i
		}
	}
	return -1
}

func countKeywords(cells []string) int {
	joined := strings.ToLower(strings.Join(cells, " "))
	count := 0
	for _, kw := range headerKeywords {
		if strings.Contains(joined, kw) {
			count++
		}
	}
	return count
}

// mapColumns matches each actual header against the alias table by
// case-insensitive substring. The leftmost header wins a canonical
// name; aliases are tried in sorted order so mapping is deterministic.
func mapColumns(header []string, aliases map[string]string) map[string]int {
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	columns := map[string]int{}
	for idx, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		if h == "" {
			continue
		}
		for _, k := range keys {
			if strings.Contains(h, k) {
				canonical := aliases[k]
				if _, taken := columns[canonical]; !taken {
					columns[canonical] = idx
				}
				break
			}
		}
	}
	return columns
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func setOptional(dst *string, row []string, columns map[string]int, canonical string) {
	idx, ok := columns[canonical]
	if !ok {
		return
	}
	if v := cell(row, idx); v != "" {
		*dst = v
	}
}
