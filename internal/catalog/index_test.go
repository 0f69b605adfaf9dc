package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"listquote/internal"
	"listquote/internal/util"
)

func TestBuildIndex(t *testing.T) {
	idx := BuildIndex([]internal.CatalogProduct{
		{ID: "p2", Name: "Lápiz grafito HB", Brand: util.StringPtr("Faber")},
		{ID: "p1", Name: "Cuaderno universitario", SKU: util.StringPtr("CU-100")},
		{ID: "p1", Name: "duplicado"},
	})

	require.Equal(t, 2, idx.Len())
	require.Equal(t, []string{"p1", "p2"}, idx.IDs)
	require.Len(t, idx.ByCode["CU100"], 1)
	require.Equal(t, "LAPIZ GRAFITO HB", idx.NormalizedNameByID["p2"])
	require.Contains(t, idx.TokenToProductIDs["FABER"], "p2")
	require.Contains(t, idx.TokenToProductIDs["CUADERNO"], "p1")
	require.Equal(t, "Cuaderno universitario", idx.ProductsByID["p1"].Name)
}
