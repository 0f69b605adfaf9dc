package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"listquote/internal/util"
)

type Source string

const (
	SourceText      Source = "text"
	SourceHTMLTable Source = "html_table"
	SourceXLSX      Source = "xlsx"
	SourcePDF       Source = "pdf"
)

// ExtractedLine is one requested product as written in the source document.
type ExtractedLine struct {
	LineNo     int
	Source     Source
	RawLine    string
	Name       string
	Qty        *float64
	Unit       *string
	Attachment string
}

var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[-_=*]{2,}$`),
	regexp.MustCompile(`(?i)^(hola|buen[oa]s?\s+(dias|tardes|noches)|estimad[oa]s?|saludos|atte\.?|atentamente|cordialmente|muchas gracias|gracias)\b`),
	regexp.MustCompile(`(?i)^(tel|telefono|fono|cel|celular|whatsapp|movil)[:.\s]`),
	regexp.MustCompile(`(?i)^e-?mail[:\s]`),
	regexp.MustCompile(`(?i)^(https?://|www\.)`),
	regexp.MustCompile(`^[\w.+-]+@[\w-]+(\.[\w-]+)+$`),
	regexp.MustCompile(`(?i)^enviado desde`),
	regexp.MustCompile(`^\+?\d[\d\s-]{7,}$`),
	regexp.MustCompile(`(?i)^(de|para|asunto|fecha|cc):\s`),
	regexp.MustCompile(`:\s*$`),
}

var (
	spacesPattern    = regexp.MustCompile(`\s+`)
	separatorPattern = regexp.MustCompile(`[;|]+`)
	digitPattern     = regexp.MustCompile(`\d`)
)

// EmailContent is what an e-mail carries for list extraction.
type EmailContent struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []string
	Lines       []ExtractedLine
}

// ExtractEmail reads a raw RFC 822 message: body text, HTML tables and
// PDF/XLSX/TXT attachments.
func ExtractEmail(raw []byte) (EmailContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return EmailContent{}, err
	}

	content := EmailContent{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	lines := make([]ExtractedLine, 0)
	if env.HTML != "" {
		lines = append(lines, ExtractHTMLTables(env.HTML)...)
	}
	// enmime renders HTML-only mail to Text; table rows then show up twice.
	if env.Text != "" && len(lines) == 0 {
		lines = append(lines, ExtractText(env.Text)...)
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		content.Attachments = append(content.Attachments, filename)

		var extra []ExtractedLine
		var extractErr error
		switch lower := strings.ToLower(filename); {
		case strings.HasSuffix(lower, ".xlsx"):
			extra, extractErr = ExtractXLSX(att.Content)
		case strings.HasSuffix(lower, ".pdf"):
			extra, extractErr = ExtractPDF(att.Content)
		case strings.HasSuffix(lower, ".txt"):
			extra = ExtractText(string(att.Content))
		default:
			continue
		}
		if extractErr != nil {
			continue
		}
		for i := range extra {
			extra[i].Attachment = filename
		}
		lines = append(lines, extra...)
	}

	content.Lines = renumber(dedupeLines(lines))
	return content, nil
}

// ExtractText reads one product per line of free text.
func ExtractText(text string) []ExtractedLine {
	return filterTextLines(SourceText, splitLines(text))
}

func filterTextLines(source Source, lines []string) []ExtractedLine {
	out := make([]ExtractedLine, 0, len(lines))
	lineNo := 0
	for _, raw := range lines {
		lineNo++
		item := lineToExtracted(source, lineNo, raw)
		if item == nil {
			continue
		}
		if !hasLetters(item.Name) || (item.Qty == nil && len([]rune(item.Name)) < 8) {
			continue
		}
		out = append(out, *item)
	}
	return out
}

// ExtractHTMLTables reads every table with a header row and at least one
// data row.
func ExtractHTMLTables(html string) []ExtractedLine {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []ExtractedLine{}
	lineNo := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, normalizeSpaces(cell.Text()))
		})
		cols := inferColumns(headers)

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			if item, ok := rowToExtracted(SourceHTMLTable, cells, cols, cols.name >= 0); ok {
				lineNo++
				item.LineNo = lineNo
				out = append(out, item)
			}
		})
	})

	return out
}

// ExtractXLSX reads all sheets. Columns come from a header row in the first
// three rows; without one, rows are read as name, quantity, unit and must
// carry a quantity.
func ExtractXLSX(content []byte) ([]ExtractedLine, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lineNo := 0
	out := []ExtractedLine{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		cols := columns{name: 0, qty: 1, unit: 2}
		headerFound := false
		probing := true
		for i, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			if probing && i < 3 {
				if inferred := inferColumns(cells); inferred.name >= 0 || inferred.qty >= 0 {
					cols = inferred
					headerFound = true
					probing = false
					continue
				}
			}

			item, ok := rowToExtracted(SourceXLSX, cells, cols, headerFound && cols.name >= 0)
			if !ok {
				continue
			}
			probing = false
			lineNo++
			item.LineNo = lineNo
			out = append(out, item)
		}
	}

	return out, nil
}

// ExtractPDF reads the text layer page by page. Scanned pages yield nothing.
func ExtractPDF(content []byte) ([]ExtractedLine, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	lines := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, splitLines(text)...)
	}
	return filterTextLines(SourcePDF, lines), nil
}

type columns struct {
	name, qty, unit int
}

func inferColumns(headers []string) columns {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.ToLower(util.FoldAccents(h)))
	}
	cols := columns{
		name: findHeaderIndex(norm, []string{"producto", "descripcion", "articulo", "nombre", "detalle", "item", "material"}),
		qty:  findHeaderIndex(norm, []string{"cantidad", "cant", "qty", "unidades"}),
	}
	cols.unit = findHeaderIndex(norm, []string{"unidad", "u/m", "medida", "formato"})
	if cols.unit == cols.qty {
		cols.unit = -1
	}
	return cols
}

// rowToExtracted turns a table row into a line. Rows from a table with a
// known name column are kept without a quantity; other rows need one.
func rowToExtracted(source Source, cells []string, cols columns, nameColumnKnown bool) (ExtractedLine, bool) {
	if len(cells) == 0 {
		return ExtractedLine{}, false
	}

	name := pickCell(cells, cols.name, 0)
	qtyCell := pickCell(cells, cols.qty, -1)
	if qtyCell == "" && cols.qty < 0 {
		for i, c := range cells {
			if i != cols.name && digitPattern.MatchString(c) {
				qtyCell = c
				break
			}
		}
	}

	parsed := util.ParseQty(qtyCell)
	if parsed.Qty == nil && qtyCell != "" {
		parsed.Qty = parseBareNumber(qtyCell)
	}
	if strings.TrimSpace(name) == "" || !hasLetters(name) {
		return ExtractedLine{}, false
	}
	if parsed.Qty == nil && !nameColumnKnown {
		return ExtractedLine{}, false
	}

	item := ExtractedLine{
		Source:  source,
		RawLine: strings.Join(cells, " | "),
		Name:    name,
		Qty:     parsed.Qty,
		Unit:    parsed.Unit,
	}
	if unit := pickCell(cells, cols.unit, -1); unit != "" {
		item.Unit = util.StringPtr(unit)
	}
	return item, true
}

func parseBareNumber(cell string) *float64 {
	if v, ok := util.ParseAmount(cell); ok && v > 0 {
		return util.FloatPtr(v)
	}
	return nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lineToExtracted(source Source, lineNo int, rawLine string) *ExtractedLine {
	compact := normalizeSpaces(rawLine)
	if compact == "" || isLikelyNoise(compact) {
		return nil
	}

	body := normalizeSpaces(util.StripListMarker(compact))
	parsed := util.ParseQty(body)
	name := body
	if parsed.QtyRaw != nil {
		name = removeSpan(name, *parsed.QtyRaw)
	}
	name = separatorPattern.ReplaceAllString(name, " ")
	name = strings.Trim(normalizeSpaces(name), "-–,.: ")
	if len([]rune(name)) <= 1 {
		name = body
	}

	return &ExtractedLine{
		LineNo:  lineNo,
		Source:  source,
		RawLine: compact,
		Name:    name,
		Qty:     parsed.Qty,
		Unit:    parsed.Unit,
	}
}

// removeSpan cuts the quantity out of a line, preferring a leading or
// trailing occurrence over one in the middle.
func removeSpan(line, span string) string {
	switch {
	case strings.HasPrefix(line, span):
		return line[len(span):]
	case strings.HasSuffix(line, span):
		return line[:len(line)-len(span)]
	}
	if idx := strings.LastIndex(line, span); idx >= 0 {
		return line[:idx] + " " + line[idx+len(span):]
	}
	return line
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(spacesPattern.ReplaceAllString(strings.ReplaceAll(input, "\u00A0", " "), " "))
}

func hasLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isLikelyNoise(line string) bool {
	folded := util.FoldAccents(strings.TrimSpace(line))
	for _, re := range ignorePatterns {
		if re.MatchString(folded) {
			return true
		}
	}
	return false
}

func dedupeLines(lines []ExtractedLine) []ExtractedLine {
	seen := map[string]struct{}{}
	out := make([]ExtractedLine, 0, len(lines))
	for _, line := range lines {
		qtyKey := "null"
		if line.Qty != nil {
			qtyKey = fmt.Sprintf("%g", *line.Qty)
		}
		key := string(line.Source) + "|" + line.Attachment + "|" + line.RawLine + "|" + qtyKey
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

func renumber(lines []ExtractedLine) []ExtractedLine {
	for i := range lines {
		lines[i].LineNo = i + 1
	}
	return lines
}

func findHeaderIndex(headers []string, probes []string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	nonEmpty := false
	for _, c := range row {
		c = normalizeSpaces(c)
		if c != "" {
			nonEmpty = true
		}
		out = append(out, c)
	}
	if !nonEmpty {
		return nil
	}
	return out
}
