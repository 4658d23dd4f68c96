package processors

import (
	"fmt"
	"strings"

	"videoAnalyze/core"
)

// SegmentPrompt builds the per-segment vision instruction from the job's
// time range and transcript excerpt.
func SegmentPrompt(job core.SegmentJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing a segment of a video. This segment spans from %s to %s.\n",
		core.FormatTime(job.Start), core.FormatTime(job.End))
	if job.Transcript != "" {
		fmt.Fprintf(&b, "The audio transcript for this segment is:\n%q\n\n", job.Transcript)
	}
	b.WriteString("Describe what you see in these frames in detail. Include:\n" +
		"- Key visual elements, people, text on screen\n" +
		"- Actions and changes between frames\n" +
		"- Any slides, diagrams, or presentations shown\n" +
		"Keep it factual and concise.")
	return b.String()
}
