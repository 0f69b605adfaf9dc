package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reQuotes     = regexp.MustCompile(`["'` + "`" + `«»“”‘’]`)
	reNonAllowed = regexp.MustCompile(`[^A-Z0-9\-/\s.]`)
	reLooseDots  = regexp.MustCompile(`(^|\s)\.+|\.+(\s|$)`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// stopwords carry no signal when comparing product names.
var stopwords = map[string]struct{}{
	"DE": {}, "DEL": {}, "LA": {}, "LAS": {}, "EL": {}, "LOS": {}, "CON": {},
	"PARA": {}, "POR": {}, "EN": {}, "UN": {}, "UNA": {}, "Y": {},
}

// FoldAccents strips combining marks: "Lápiz Ñandú" → "Lapiz Nandu".
func FoldAccents(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

func NormalizeName(input string) string {
	s := strings.ToUpper(FoldAccents(input))
	repl := strings.NewReplacer("×", "X", "*", "X", "N°", "N ", "Nº", "N ", "°", " ", "º", " ", "ª", " ", "#", "N ")
	s = repl.Replace(s)
	s = reQuotes.ReplaceAllString(s, " ")
	s = reNonAllowed.ReplaceAllString(s, " ")
	s = reLooseDots.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func NormalizeCode(input string) string {
	s := strings.ToUpper(FoldAccents(input))
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func Tokenize(input string) []string {
	normalized := NormalizeName(input)
	parts := strings.Split(normalized, " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "-/.")
		if len([]rune(p)) < 2 {
			continue
		}
		if _, skip := stopwords[p]; skip {
			continue
		}
		out = append(out, p)
	}
	return out
}

// LooksLikeCode reports whether input reads as a single SKU-like token
// (letters and digits, no spaces).
func LooksLikeCode(input string) bool {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) < 4 || strings.ContainsAny(trimmed, " \t") {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}

func StringPtr(v string) *string {
	return &v
}

func FloatPtr(v float64) *float64 {
	return &v
}
