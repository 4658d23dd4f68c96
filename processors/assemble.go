package processors

import (
	"strings"

	"videoAnalyze/core"
)

// BuildFullContext merges analyzed segments into the single context block
// consumed by the text-generation calls. One block per segment, in input
// order: a bracketed time-range header, then a Transcript line if the
// excerpt is non-empty and a Visual line if the description is non-empty.
// Pure function; identical input yields byte-identical output.
func BuildFullContext(results []core.SegmentResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		b.WriteString("[" + core.FormatTime(r.Start) + " - " + core.FormatTime(r.End) + "]\n")
		if r.Transcript != "" {
			b.WriteString("Transcript: " + r.Transcript + "\n")
		}
		if r.Description != "" {
			b.WriteString("Visual: " + r.Description + "\n")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}
