package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"listquote/internal/reconcile"
)

const (
	reviewSheet = "revision"
	cartSheet   = "carrito"
)

// ExportReviewXLSX writes a review session: one row per line and candidate on
// the revision sheet, the consolidated additions on the carrito sheet.
func ExportReviewXLSX(view reconcile.View, preview reconcile.Preview, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), reviewSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(cartSheet); err != nil {
		return err
	}

	writeRow(f, reviewSheet, 1, "linea", "termino", "cantidad", "encontrado", "confianza",
		"producto_id", "producto", "marca", "precio", "stock", "similitud", "seleccionado")
	r := 2
	for i, line := range view.Lines {
		base := []any{i + 1, line.SearchTerm, line.RequestedQuantity, yesNo(line.Matched), string(line.Confidence)}
		if len(line.Candidates) == 0 {
			writeRow(f, reviewSheet, r, base...)
			r++
			continue
		}
		for _, c := range line.Candidates {
			brand := ""
			if c.Brand != nil {
				brand = *c.Brand
			}
			selected := ""
			if c.Selected {
				selected = "x"
			}
			row := append(append([]any{}, base...), c.ID, c.Name, brand, c.Price, c.Stock, c.Similarity, selected)
			writeRow(f, reviewSheet, r, row...)
			r++
		}
	}

	writeRow(f, cartSheet, 1, "producto_id", "producto", "cantidad", "precio_unitario", "subtotal", "stock", "sin_stock")
	r = 2
	for _, item := range preview.Items {
		writeRow(f, cartSheet, r, item.ProductID, item.Name, item.Quantity,
			item.UnitPrice.InexactFloat64(), item.Subtotal.InexactFloat64(), item.Stock, yesNo(item.Backorder))
		r++
	}
	writeRow(f, cartSheet, r, "", "total", "", "", preview.Total.InexactFloat64())

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func yesNo(v bool) string {
	if v {
		return "si"
	}
	return "no"
}
