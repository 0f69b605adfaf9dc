package pipeline

import (
	"math"
	"sort"

	"listquote/internal"
	"listquote/internal/catalog"
	"listquote/internal/config"
	"listquote/internal/util"
)

const (
	maxCandidates = 5
	// maxFallbackScan bounds the full scan used when no token hits the index.
	maxFallbackScan = 1500

	similarityCode      = 99
	similarityExactName = 95
	similarityManyCodes = 80
	similarityManyNames = 78
)

type Thresholds struct {
	OK     float64
	Review float64
	Min    float64
	Gap    float64
}

func ThresholdsFromConfig(cfg config.Config) Thresholds {
	return Thresholds{
		OK:     cfg.MatchOKThreshold,
		Review: cfg.MatchReviewThreshold,
		Min:    cfg.MatchMinThreshold,
		Gap:    cfg.MatchGapThreshold,
	}
}

type Matcher struct {
	thresholds Thresholds
	index      *catalog.Index
}

func NewMatcher(thresholds Thresholds, index *catalog.Index) *Matcher {
	if index == nil {
		index = catalog.BuildIndex(nil)
	}
	return &Matcher{thresholds: thresholds, index: index}
}

func (m *Matcher) CatalogSize() int {
	return m.index.Len()
}

// Match resolves one extracted line against the catalog. Similarities are on
// a 0..100 scale; unmatched lines carry no candidates.
func (m *Matcher) Match(line NormalizedLine) internal.LineItem {
	item := internal.LineItem{
		SearchTerm:        line.Name,
		RequestedQuantity: util.RequestedQuantity(line.Qty),
		Confidence:        internal.ConfidenceNone,
		Candidates:        []internal.Candidate{},
	}
	if item.SearchTerm == "" {
		item.SearchTerm = line.RawLine
	}

	normalized := line.Normalized
	if normalized == "" {
		normalized = util.NormalizeName(line.RawLine)
	}

	if code := util.NormalizeCode(line.Name); util.LooksLikeCode(line.Name) && code != "" {
		byCode := m.index.ByCode[code]
		if len(byCode) == 1 {
			item.Confidence = internal.ConfidenceHigh
			item.Candidates = []internal.Candidate{byCode[0].Candidate(similarityCode)}
			return m.finish(line, item)
		}
		if len(byCode) > 1 {
			item.Confidence = internal.ConfidenceMedium
			item.Candidates = toCandidates(byCode, similarityManyCodes)
			return m.finish(line, item)
		}
	}

	exact := m.index.ByName[normalized]
	if len(exact) == 1 {
		item.Confidence = internal.ConfidenceHigh
		item.Candidates = []internal.Candidate{exact[0].Candidate(similarityExactName)}
		return m.finish(line, item)
	}
	if len(exact) > 1 {
		item.Confidence = internal.ConfidenceMedium
		item.Candidates = toCandidates(exact, similarityManyNames)
		return m.finish(line, item)
	}

	ranked := m.rankCandidates(normalized)
	if len(ranked) == 0 || ranked[0].score < m.thresholds.Min {
		return m.finish(line, item)
	}

	top := ranked[0].score
	gap := top
	if len(ranked) > 1 {
		gap = top - ranked[1].score
	}
	switch {
	case top >= m.thresholds.OK && gap >= m.thresholds.Gap:
		item.Confidence = internal.ConfidenceHigh
	case top >= m.thresholds.Review:
		item.Confidence = internal.ConfidenceMedium
	default:
		item.Confidence = internal.ConfidenceLow
	}
	for _, r := range ranked {
		if r.score < m.thresholds.Min {
			break
		}
		item.Candidates = append(item.Candidates, m.index.ProductsByID[r.id].Candidate(toSimilarity(r.score)))
	}
	return m.finish(line, item)
}

// finish caps lines without a parsed quantity at medium confidence.
func (m *Matcher) finish(line NormalizedLine, item internal.LineItem) internal.LineItem {
	if line.Qty == nil && item.Confidence == internal.ConfidenceHigh {
		item.Confidence = internal.ConfidenceMedium
	}
	item.Matched = len(item.Candidates) > 0
	if !item.Matched {
		item.Confidence = internal.ConfidenceNone
	}
	return item
}

type scored struct {
	id    string
	score float64
}

func (m *Matcher) rankCandidates(query string) []scored {
	queryTokens := util.Tokenize(query)
	ids := map[string]struct{}{}

	for _, token := range queryTokens {
		for id := range m.index.TokenToProductIDs[token] {
			ids[id] = struct{}{}
		}
	}

	if len(ids) == 0 {
		for i, id := range m.index.IDs {
			if i >= maxFallbackScan {
				break
			}
			ids[id] = struct{}{}
		}
	}

	out := make([]scored, 0, len(ids))
	for id := range ids {
		candidateName := m.index.NormalizedNameByID[id]
		out = append(out, scored{id: id, score: scoreName(query, candidateName, queryTokens, util.Tokenize(candidateName))})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

func scoreName(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

func toSimilarity(score float64) float64 {
	return math.Round(score*1000) / 10
}

func toCandidates(products []internal.CatalogProduct, similarity float64) []internal.Candidate {
	sorted := append([]internal.CatalogProduct(nil), products...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	if len(sorted) > maxCandidates {
		sorted = sorted[:maxCandidates]
	}
	out := make([]internal.Candidate, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, p.Candidate(similarity))
	}
	return out
}
