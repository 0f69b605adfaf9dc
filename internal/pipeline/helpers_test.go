package pipeline

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/xuri/excelize/v2"

	"listquote/internal"
	"listquote/internal/catalog"
	"listquote/internal/util"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

type attachment struct {
	name        string
	contentType string
	data        []byte
}

func buildEML(subject, body string, attachments ...attachment) []byte {
	var b strings.Builder
	b.WriteString("From: Cliente <cliente@example.com>\r\n")
	b.WriteString("To: ventas@libreria.test\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: Mon, 02 Mar 2026 10:00:00 -0300\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	if len(attachments) == 0 {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
		b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
		return []byte(b.String())
	}

	b.WriteString("Content-Type: multipart/mixed; boundary=\"frontera\"\r\n\r\n")
	b.WriteString("--frontera\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n") + "\r\n")
	for _, att := range attachments {
		b.WriteString("--frontera\r\n")
		b.WriteString("Content-Type: " + att.contentType + "\r\n")
		b.WriteString("Content-Disposition: attachment; filename=\"" + att.name + "\"\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		encoded := base64.StdEncoding.EncodeToString(att.data)
		for len(encoded) > 76 {
			b.WriteString(encoded[:76] + "\r\n")
			encoded = encoded[76:]
		}
		b.WriteString(encoded + "\r\n")
	}
	b.WriteString("--frontera--\r\n")
	return []byte(b.String())
}

func testProducts() []internal.CatalogProduct {
	return []internal.CatalogProduct{
		{ID: "p1", Name: "Cuaderno college 100 hojas", SKU: util.StringPtr("CU-100"), Brand: util.StringPtr("Torre"), Price: 1.99, Stock: 40},
		{ID: "p2", Name: "Cuaderno universitario 100 hojas", Price: 2.49, Stock: 12},
		{ID: "p3", Name: "Lápiz grafito HB", Brand: util.StringPtr("Faber"), Price: 0.5, Stock: 5},
		{ID: "p4", Name: "Goma de borrar", Price: 0.3, Stock: 100},
		{ID: "p5", Name: "Goma de borrar", Price: 0.35, Stock: 80},
	}
}

func testThresholds() Thresholds {
	return Thresholds{OK: 0.85, Review: 0.65, Min: 0.40, Gap: 0.08}
}

func testMatcher() *Matcher {
	return NewMatcher(testThresholds(), catalog.BuildIndex(testProducts()))
}
