package normalizer

import (
	"fmt"
	"strings"
	"testing"

	"etfharvest/internal/holdings"
	"etfharvest/internal/provider"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testAliases = map[string]string{
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
}

func testProfile() *provider.Profile {
	return &provider.Profile{Name: "testsite", FileColumnAliases: testAliases}
}

func csvWithPreamble(preambleRows int) []byte {
	var sb strings.Builder
	for i := 0; i < preambleRows; i++ {
		sb.WriteString(fmt.Sprintf("legal disclaimer line %d\n", i))
	}
	sb.WriteString("Name,ISIN,Sektor,Gewichtung (%)\n")
	sb.WriteString("Apple Inc,US0378331005,Technology,5.32\n")
	sb.WriteString("SAP SE,DE0007164600,Technology,\"4,10\"\n")
	return []byte(sb.String())
}

func TestNormalizeHeaderDetection(t *testing.T) {
	n := New()
	for _, preamble := range []int{0, 1, 21} {
		t.Run(fmt.Sprintf("preamble=%d", preamble), func(t *testing.T) {
			records, err := n.Normalize(csvWithPreamble(preamble), "holdings.csv", testProfile())
			require.NoError(t, err)
			require.Len(t, records, 2)
			require.Equal(t, "Apple Inc", records[0].Name)
			require.Equal(t, 5.32, records[0].Weight)
			require.Equal(t, "US0378331005", records[0].ISIN)
			require.Equal(t, 4.10, records[1].Weight)
		})
	}

	t.Run("no row reaches the keyword threshold", func(t *testing.T) {
		_, err := n.Normalize([]byte("just some text\nmore text\n1,2,3\n"), "holdings.csv", testProfile())
		require.Error(t, err)
	})
}

func TestNormalizeRowFiltering(t *testing.T) {
	data := []byte(strings.Join([]string{
		"Name,Gewichtung (%)",
		"Apple Inc,5.32",
		"Bad Weight Corp,not-a-number",
		",3.10",
		"Negative Corp,-2.0",
		"Microsoft Corp,4.90",
	}, "\n"))

	records, err := New().Normalize(data, "holdings.csv", testProfile())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Apple Inc", records[0].Name)
	require.Equal(t, "Microsoft Corp", records[1].Name)
	for _, r := range records {
		require.GreaterOrEqual(t, r.Weight, 0.0)
		require.Equal(t, holdings.Missing, r.Sector)
	}
}

func TestNormalizeMissingWeightColumnIsHardFailure(t *testing.T) {
	data := []byte("Name,ISIN,Sektor\nApple Inc,US0378331005,Technology\n")
	_, err := New().Normalize(data, "holdings.csv", testProfile())
	require.Error(t, err)
	require.Contains(t, err.Error(), "required columns")
}

func TestNormalizeSemicolonDelimiter(t *testing.T) {
	data := []byte("Fondspositionen, Stand; 31.12.2025\nBezeichnung;ISIN;Gewichtung\nNestle SA;CH0038863350;2,95%\n")
	records, err := New().Normalize(data, "pos.csv", testProfile())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Nestle SA", records[0].Name)
	require.Equal(t, 2.95, records[0].Weight)
}

func TestNormalizeSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	// Banner rows above the real header, like the Amundi export.
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Fund composition"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"As of 2025-12-31"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Name", "ISIN", "Währung", "Gewichtung"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"ASML Holding NV", "NL0010273215", "EUR", "3,4%"}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]interface{}{"LVMH SE", "FR0000121014", "EUR", 2.1}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, errNorm := New().Normalize(buf.Bytes(), "composition.xlsx", testProfile())
	require.NoError(t, errNorm)
	require.Len(t, records, 2)
	require.Equal(t, "ASML Holding NV", records[0].Name)
	require.Equal(t, 3.4, records[0].Weight)
	require.Equal(t, "EUR", records[0].Currency)
	require.Equal(t, 2.1, records[1].Weight)
}

func TestNormalizeRejectsLegacyXLS(t *testing.T) {
	// OLE compound-file magic, the pre-2007 Excel container.
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 64)...)
	_, err := New().Normalize(data, "holdings.xls", testProfile())
	require.Error(t, err)
	require.Contains(t, err.Error(), "legacy .xls format is not supported")
}

func TestNormalizePreservesRowOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Name,Gewichtung\n")
	for i := 0; i < 12; i++ {
		sb.WriteString(fmt.Sprintf("Security %02d,%d.5\n", i, i))
	}
	records, err := New().Normalize([]byte(sb.String()), "h.csv", testProfile())
	require.NoError(t, err)
	require.Len(t, records, 12)
	for i, r := range records {
		require.Equal(t, fmt.Sprintf("Security %02d", i), r.Name)
	}
}
