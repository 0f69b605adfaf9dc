package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"listquote/internal"
	"listquote/internal/util"
)

func normalized(name string, qty *float64) NormalizedLine {
	lines := NormalizeLines([]ExtractedLine{{LineNo: 1, Source: SourceText, RawLine: name, Name: name, Qty: qty}})
	return lines[0]
}

func TestMatchByCode(t *testing.T) {
	item := testMatcher().Match(normalized("CU-100", util.FloatPtr(2)))

	require.True(t, item.Matched)
	require.Equal(t, internal.ConfidenceHigh, item.Confidence)
	require.Equal(t, 2, item.RequestedQuantity)
	require.Len(t, item.Candidates, 1)
	require.Equal(t, "p1", item.Candidates[0].ID)
	require.Equal(t, 99.0, item.Candidates[0].Similarity)
}

func TestMatchExactName(t *testing.T) {
	item := testMatcher().Match(normalized("Lápiz grafito HB", util.FloatPtr(3)))

	require.Equal(t, internal.ConfidenceHigh, item.Confidence)
	require.Equal(t, "p3", item.Candidates[0].ID)
	require.Equal(t, 95.0, item.Candidates[0].Similarity)
	require.Equal(t, "Faber", *item.Candidates[0].Brand)
}

func TestMatchWithoutQuantityIsCappedAtMedium(t *testing.T) {
	item := testMatcher().Match(normalized("lapiz grafito hb", nil))

	require.True(t, item.Matched)
	require.Equal(t, internal.ConfidenceMedium, item.Confidence)
	require.Equal(t, 1, item.RequestedQuantity)
}

func TestMatchAmbiguousName(t *testing.T) {
	item := testMatcher().Match(normalized("goma de borrar", util.FloatPtr(1)))

	require.Equal(t, internal.ConfidenceMedium, item.Confidence)
	require.Len(t, item.Candidates, 2)
	require.Equal(t, "p4", item.Candidates[0].ID)
	require.Equal(t, "p5", item.Candidates[1].ID)
	require.Equal(t, 78.0, item.Candidates[0].Similarity)
}

func TestMatchFuzzyHigh(t *testing.T) {
	item := testMatcher().Match(normalized("Cuaderno college 100 hoja", util.FloatPtr(1)))

	require.Equal(t, internal.ConfidenceHigh, item.Confidence)
	require.Equal(t, "p1", item.Candidates[0].ID)
	require.Greater(t, item.Candidates[0].Similarity, 85.0)
	for i := 1; i < len(item.Candidates); i++ {
		require.LessOrEqual(t, item.Candidates[i].Similarity, item.Candidates[i-1].Similarity)
	}
}

func TestMatchFuzzyMedium(t *testing.T) {
	item := testMatcher().Match(normalized("cuaderno college", util.FloatPtr(1)))

	require.Equal(t, internal.ConfidenceMedium, item.Confidence)
	require.Equal(t, "p1", item.Candidates[0].ID)
	require.InDelta(t, 83.75, item.Candidates[0].Similarity, 0.1)
}

func TestMatchNothing(t *testing.T) {
	item := testMatcher().Match(normalized("Calculadora científica", util.FloatPtr(1)))

	require.False(t, item.Matched)
	require.Equal(t, internal.ConfidenceNone, item.Confidence)
	require.Empty(t, item.Candidates)
	require.Equal(t, "Calculadora científica", item.SearchTerm)
}

func TestMatchIsDeterministic(t *testing.T) {
	m := testMatcher()
	first := m.Match(normalized("cuaderno 100 hojas", util.FloatPtr(1)))
	for i := 0; i < 20; i++ {
		require.Equal(t, first, m.Match(normalized("cuaderno 100 hojas", util.FloatPtr(1))))
	}
}

func TestMatchCapsOversizedQuantity(t *testing.T) {
	item := testMatcher().Match(normalized("CU-100", util.FloatPtr(1e20)))

	require.True(t, item.Matched)
	require.Equal(t, internal.MaxQuantity, item.RequestedQuantity)
}
