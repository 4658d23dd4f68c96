package processors

import (
	"sort"
	"strings"

	"videoAnalyze/core"
)

// TranscriptForRange joins the text of every transcript segment overlapping
// [start, end). Segments touching only at a boundary do not overlap.
func TranscriptForRange(segments []core.Segment, start, end float64) string {
	parts := make([]string, 0, 4)
	for _, seg := range segments {
		if seg.End > start && seg.Start < end {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}

// FormatTranscript renders the full transcript with one timestamped line per
// segment.
func FormatTranscript(segments []core.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, "["+core.FormatTime(seg.Start)+"] "+seg.Text)
	}
	return strings.Join(lines, "\n")
}

// SearchTranscript returns segments containing query (case-insensitive),
// sorted by start time.
func SearchTranscript(segments []core.Segment, query string) []core.Segment {
	q := strings.ToLower(query)
	matches := make([]core.Segment, 0)
	for _, seg := range segments {
		if strings.Contains(strings.ToLower(seg.Text), q) {
			matches = append(matches, seg)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// AttachTranscripts pairs each sampled segment job with its overlapping
// transcript excerpt.
func AttachTranscripts(jobs []core.SegmentJob, segments []core.Segment) {
	for i := range jobs {
		jobs[i].Transcript = TranscriptForRange(segments, jobs[i].Start, jobs[i].End)
	}
}
