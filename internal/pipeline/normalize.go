package pipeline

import "listquote/internal/util"

type NormalizedLine struct {
	ExtractedLine
	Normalized string
}

func NormalizeLines(lines []ExtractedLine) []NormalizedLine {
	out := make([]NormalizedLine, 0, len(lines))
	for _, line := range lines {
		source := line.Name
		if source == "" {
			source = line.RawLine
		}
		out = append(out, NormalizedLine{
			ExtractedLine: line,
			Normalized:    util.NormalizeName(source),
		})
	}
	return out
}
