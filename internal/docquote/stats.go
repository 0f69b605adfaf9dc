package docquote

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"listquote/internal"
)

func ComputeStats(lines []internal.LineItem) internal.ProcessStats {
	stats := internal.ProcessStats{Total: len(lines)}
	for _, line := range lines {
		if line.Matched {
			stats.Found++
		}
		switch line.Confidence {
		case internal.ConfidenceHigh:
			stats.HighConfidence++
		case internal.ConfidenceMedium:
			stats.MediumConfidence++
		}
	}
	stats.NotFound = stats.Total - stats.Found
	if stats.Total > 0 {
		stats.SuccessRate = math.Round(float64(stats.Found)/float64(stats.Total)*1000) / 10
	}
	return stats
}

// DecodeResponse reads a process response body. Stats are recomputed when the
// body omits them.
func DecodeResponse(r io.Reader) (internal.ProcessResponse, error) {
	var resp internal.ProcessResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return internal.ProcessResponse{}, fmt.Errorf("decode process response: %w", err)
	}
	if resp.Results == nil {
		resp.Results = []internal.LineItem{}
	}
	for i := range resp.Results {
		if resp.Results[i].Candidates == nil {
			resp.Results[i].Candidates = []internal.Candidate{}
		}
		if !resp.Results[i].Confidence.Valid() {
			resp.Results[i].Confidence = internal.ConfidenceNone
		}
	}
	if resp.Stats.Total == 0 && len(resp.Results) > 0 {
		resp.Stats = ComputeStats(resp.Results)
	}
	return resp, nil
}
