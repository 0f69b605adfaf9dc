package pipeline

import (
	"strings"

	"listquote/internal/util"
)

type DetectResult struct {
	IsList bool
	Score  float64
	Reason string
}

var detectKeywords = []string{"lista", "utiles", "cotiza", "presupuesto", "pedido", "necesito", "solicito", "cantidad", "materiales", "encargo"}

// DetectShoppingList scores whether an e-mail asks for a quote on a list of
// products.
func DetectShoppingList(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(util.FoldAccents(subject))
	body := strings.ToLower(util.FoldAccents(text))
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(body, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	qtyHits := countQtyLines(text)
	if qtyHits >= 2 {
		score += 0.4
	} else if qtyHits == 1 {
		score += 0.2
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".xlsx") || strings.HasSuffix(ln, ".pdf") || strings.HasSuffix(ln, ".txt") {
			score += 0.25
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isList := score >= 0.45
	reason := "rules_negative"
	if isList {
		reason = "rules_positive"
	}

	return DetectResult{IsList: isList, Score: score, Reason: reason}
}

// countQtyLines counts body lines that carry a quantity.
func countQtyLines(text string) int {
	count := 0
	for _, line := range splitLines(text) {
		if isLikelyNoise(line) {
			continue
		}
		if util.ParseQty(line).Qty != nil {
			count++
		}
	}
	return count
}
