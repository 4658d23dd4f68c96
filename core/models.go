package core

import (
	"fmt"
	"math"
)

// Segment is one transcript span produced by ASR.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SegmentJob is one unit of visual-analysis work. Immutable once built;
// Index is the job's position in the original sequence and fixes where its
// result lands regardless of completion order.
type SegmentJob struct {
	Index      int      `json:"index"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	FramesB64  []string `json:"frames_b64"`
	Transcript string   `json:"transcript"`
}

// SegmentResult is the analyzed counterpart of a SegmentJob. Description is
// either the model's output or the fallback text; Degraded records which.
type SegmentResult struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Transcript  string  `json:"transcript"`
	Description string  `json:"visual_description"`
	Degraded    bool    `json:"degraded,omitempty"`
}

// Chapter is one auto-generated chapter marker.
type Chapter struct {
	Time    float64 `json:"time"`
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
}

// StudyTopic is one entry of the generated study guide.
type StudyTopic struct {
	Topic     string   `json:"topic"`
	Timestamp float64  `json:"timestamp"`
	Overview  string   `json:"overview"`
	Details   string   `json:"details"`
	KeyTerms  []string `json:"key_terms"`
}

// Question is one generated practice question.
type Question struct {
	Question    string   `json:"question"`
	Type        string   `json:"type"` // "multiple_choice", "short_answer", "true_false"
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// Hit is one vector-store search result.
type Hit struct {
	Score       float64 `json:"score"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Transcript  string  `json:"transcript"`
	Description string  `json:"visual_description"`
}

// SearchResult is one lexical search match across transcript, visual
// descriptions, and chapters.
type SearchResult struct {
	Time      float64 `json:"time"`
	Timestamp string  `json:"timestamp"`
	Context   string  `json:"context"`
	Source    string  `json:"source"` // "transcript", "visual", "chapter"
}

// FormatTime renders seconds as MM:SS, or H:MM:SS past the hour mark.
func FormatTime(seconds float64) string {
	total := int(math.Max(seconds, 0))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
