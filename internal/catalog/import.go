package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"listquote/internal"
	"listquote/internal/util"
)

type priceListColumns struct {
	code, name, brand, price, stock, image int
}

// ImportXLSX reads a price list workbook. The first sheet whose header row
// names a product column is used; rows without a name are skipped.
func ImportXLSX(path string) ([]internal.CatalogProduct, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for headerRow := 0; headerRow < len(rows) && headerRow < 5; headerRow++ {
			cols, ok := inferPriceListColumns(rows[headerRow])
			if !ok {
				continue
			}
			return readPriceList(sheet, rows[headerRow+1:], headerRow+2, cols), nil
		}
	}
	return nil, fmt.Errorf("no price list header found in %s", path)
}

func inferPriceListColumns(header []string) (priceListColumns, bool) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(util.FoldAccents(strings.TrimSpace(h)))
	}
	cols := priceListColumns{
		code:  findColumn(norm, "codigo", "sku", "cod"),
		name:  findColumn(norm, "nombre", "descripcion", "producto", "articulo"),
		brand: findColumn(norm, "marca"),
		price: findColumn(norm, "precio", "valor"),
		stock: findColumn(norm, "stock", "existencia"),
		image: findColumn(norm, "imagen", "foto"),
	}
	return cols, cols.name >= 0
}

func findColumn(headers []string, probes ...string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func readPriceList(sheet string, rows [][]string, firstRow int, cols priceListColumns) []internal.CatalogProduct {
	out := make([]internal.CatalogProduct, 0, len(rows))
	seen := map[string]struct{}{}
	for i, row := range rows {
		name := cell(row, cols.name)
		if name == "" {
			continue
		}
		code := cell(row, cols.code)

		id := util.NormalizeCode(code)
		if id == "" {
			id = "xlsx-" + strconv.Itoa(firstRow+i)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		raw := map[string]any{"sheet": sheet, "row": firstRow + i, "cells": row}
		rawJSON, _ := json.Marshal(raw)
		product := internal.CatalogProduct{
			ID:      id,
			Name:    name,
			SKU:     optional(code),
			Brand:   optional(cell(row, cols.brand)),
			Image:   optional(cell(row, cols.image)),
			RawJSON: string(rawJSON),
		}
		if price, ok := util.ParseAmount(cell(row, cols.price)); ok {
			product.Price = price
		}
		if stock, ok := util.ParseAmount(cell(row, cols.stock)); ok {
			product.Stock = int(stock)
		}
		out = append(out, product)
	}
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
