package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"listquote/internal"
)

const unitAlternation = `unidades|unidad|unids?|unds?|un|u|pzas?|pzs?|piezas?|cajas?|paquetes?|paqs?|resmas?|docenas?|sets?|pcs|pc`

var (
	withUnitPattern   = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[.,]\d{3})+|\d+(?:[.,]\d+)?)\s*(` + unitAlternation + `)\b\.?`)
	multiplierPattern = regexp.MustCompile(`(?i)^(\d+)\s*x\s|(?:^|\s)x\s*(\d+)\s*$`)
	numberingPattern  = regexp.MustCompile(`^\s*(?:[-*•·]\s*)?\d{1,2}[.)]\s+`)
	bulletPattern     = regexp.MustCompile(`^\s*[-*•·]+\s*`)
	leadingPattern    = regexp.MustCompile(`^(\d+)\s+[^\d\s]`)
	trailingPattern   = regexp.MustCompile(`(?:^|\s)(\d+)\s*$`)
	groupedDot        = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	groupedComma      = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

type ParsedQty struct {
	Qty  *float64
	Unit *string
	// QtyRaw is the exact span of the line that carried the quantity.
	QtyRaw *string
}

// ParseQty finds the requested quantity in a shopping list line. An explicit
// unit wins over a multiplier ("x3"), which wins over a leading number, which
// wins over a trailing number. Numbers inside the product description
// ("cuaderno 100 hojas") are left alone.
func ParseQty(input string) ParsedQty {
	line := strings.TrimSpace(StripListMarker(strings.ReplaceAll(input, "\u00A0", " ")))

	if m := lastSubmatchIndex(withUnitPattern, line); m != nil {
		qty := parseNumber(line[m[2]:m[3]])
		unit := normalizeUnit(line[m[4]:m[5]])
		if qty != nil && unit == "docena" {
			dozens := *qty * 12
			qty = &dozens
			unit = "u"
		}
		return ParsedQty{Qty: qty, Unit: StringPtr(unit), QtyRaw: StringPtr(line[m[2]:m[1]])}
	}

	if m := multiplierPattern.FindStringSubmatchIndex(line); m != nil {
		token := ""
		if m[2] >= 0 {
			token = line[m[2]:m[3]]
		} else {
			token = line[m[4]:m[5]]
		}
		return ParsedQty{Qty: parseNumber(token), QtyRaw: StringPtr(strings.TrimSpace(line[m[0]:m[1]]))}
	}

	if m := leadingPattern.FindStringSubmatch(line); m != nil {
		return ParsedQty{Qty: parseNumber(m[1]), QtyRaw: StringPtr(m[1])}
	}
	if m := trailingPattern.FindStringSubmatch(line); m != nil {
		return ParsedQty{Qty: parseNumber(m[1]), QtyRaw: StringPtr(m[1])}
	}

	return ParsedQty{}
}

// StripListMarker removes bullets and short list numbering ("1.", "2)").
func StripListMarker(line string) string {
	if loc := numberingPattern.FindStringIndex(line); loc != nil {
		return line[loc[1]:]
	}
	return bulletPattern.ReplaceAllString(line, "")
}

// RequestedQuantity converts a parsed quantity into a whole number of units.
// Missing or non-positive quantities default to 1; fractions round up and
// values above internal.MaxQuantity are capped.
func RequestedQuantity(qty *float64) int {
	if qty == nil || *qty <= 0 || math.IsNaN(*qty) {
		return 1
	}
	if *qty >= internal.MaxQuantity {
		return internal.MaxQuantity
	}
	return int(math.Ceil(*qty))
}

func lastSubmatchIndex(re *regexp.Regexp, line string) []int {
	all := re.FindAllStringSubmatchIndex(line, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func parseNumber(token string) *float64 {
	norm := normalizeNumericToken(strings.TrimSpace(token))
	parsed, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return nil
	}
	return FloatPtr(parsed)
}

func normalizeUnit(unit string) string {
	u := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), ".")
	switch {
	case strings.HasPrefix(u, "docena"):
		return "docena"
	case strings.HasPrefix(u, "caja"):
		return "caja"
	case strings.HasPrefix(u, "paq"):
		return "paquete"
	case strings.HasPrefix(u, "resma"):
		return "resma"
	case strings.HasPrefix(u, "set"):
		return "set"
	default:
		return "u"
	}
}

func normalizeNumericToken(token string) string {
	if groupedDot.MatchString(token) {
		return strings.ReplaceAll(token, ".", "")
	}
	if groupedComma.MatchString(token) {
		return strings.ReplaceAll(token, ",", "")
	}
	if strings.Contains(token, ",") && !strings.Contains(token, ".") {
		return strings.ReplaceAll(token, ",", ".")
	}
	return token
}

var currencyPattern = regexp.MustCompile(`(?i)\$|clp|ars|usd|eur|€|\s`)

// ParseAmount reads a price cell such as "$1.250,50", "1,250.50" or "990".
func ParseAmount(input string) (float64, bool) {
	token := currencyPattern.ReplaceAllString(strings.TrimSpace(input), "")
	if token == "" {
		return 0, false
	}
	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")
	if lastDot >= 0 && lastComma >= 0 {
		if lastComma > lastDot {
			token = strings.ReplaceAll(token, ".", "")
			token = strings.Replace(token, ",", ".", 1)
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	} else {
		token = normalizeNumericToken(token)
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
