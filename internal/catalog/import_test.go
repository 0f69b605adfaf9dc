package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "precios.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportXLSXInfersColumns(t *testing.T) {
	path := writeXLSX(t, [][]any{
		{"Lista de precios marzo"},
		{"Código", "Descripción", "Marca", "Precio", "Stock"},
		{"CU-100", "Cuaderno universitario 100 hojas", "Rhein", "$1.290", 12},
		{"", "Lápiz grafito HB", "", 350, 0},
		{"", "", "", "", ""},
		{"CU-100", "Cuaderno repetido", "", 1, 1},
	})

	products, err := ImportXLSX(path)
	require.NoError(t, err)
	require.Len(t, products, 2)

	require.Equal(t, "CU100", products[0].ID)
	require.Equal(t, "CU-100", *products[0].SKU)
	require.Equal(t, "Rhein", *products[0].Brand)
	require.InDelta(t, 1290, products[0].Price, 1e-9)
	require.Equal(t, 12, products[0].Stock)

	require.Equal(t, "xlsx-4", products[1].ID)
	require.Nil(t, products[1].SKU)
	require.Nil(t, products[1].Brand)
	require.InDelta(t, 350, products[1].Price, 1e-9)
}

func TestImportXLSXWithoutHeader(t *testing.T) {
	path := writeXLSX(t, [][]any{
		{"a", "b"},
		{1, 2},
	})
	_, err := ImportXLSX(path)
	require.Error(t, err)
}
