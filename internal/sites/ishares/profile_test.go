package ishares

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewriteProductURL(t *testing.T) {
	t.Run("strips tracking query and appends passthrough", func(t *testing.T) {
		got := rewriteProductURL("/de/privatanleger/de/produkte/251882/fund?siteEntryPassthrough=true&locale=de_DE")
		require.Equal(t,
			"https://www.ishares.com/de/privatanleger/de/produkte/251882/fund?switchLocale=y&siteEntryPassthrough=true",
			got)
	})

	t.Run("absolute url keeps its origin", func(t *testing.T) {
		got := rewriteProductURL("https://www.ishares.com/de/produkte/251882/fund")
		require.Equal(t,
			"https://www.ishares.com/de/produkte/251882/fund?switchLocale=y&siteEntryPassthrough=true",
			got)
	})
}
