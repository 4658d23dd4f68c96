package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"videoAnalyze/core"
)

// TextCompleter is the text-only slice of the request client used by the
// intelligence features.
type TextCompleter interface {
	TextCompletion(ctx context.Context, prompt, system string, maxTokens int) (string, error)
}

// GenerateChapters asks the model to find topic changes in the assembled
// context. Falls back to one chapter per segment when the model's output
// cannot be parsed. Timestamps are clamped to the video duration.
func GenerateChapters(ctx context.Context, tc TextCompleter, results []core.SegmentResult) ([]core.Chapter, error) {
	contextBlock := BuildFullContext(results)

	prompt := "You are analyzing a video. Below is the full transcript and visual description " +
		"organized by time segments.\n\n" +
		contextBlock + "\n\n" +
		"Based on this content, identify the major topic changes and create chapters. " +
		"Return ONLY a JSON array of objects with these keys:\n" +
		"- \"time\": start time in seconds (number)\n" +
		"- \"title\": short chapter title (under 60 chars)\n" +
		"- \"summary\": one-sentence summary\n\n" +
		"Create between 3-10 chapters depending on video length and content changes. " +
		"The first chapter should start at time 0. " +
		"Return ONLY valid JSON, no markdown fences."

	raw, err := tc.TextCompletion(ctx, prompt, "", 2048)
	if err != nil {
		return FallbackChapters(results), err
	}

	var chapters []core.Chapter
	if jsonErr := parseJSONArray(raw, &chapters); jsonErr != nil {
		return FallbackChapters(results), nil
	}

	maxTime := maxEndTime(results)
	for i := range chapters {
		chapters[i].Time = clamp(chapters[i].Time, 0, maxTime)
	}
	return chapters, nil
}

// GenerateTakeaways extracts the key points of the video as bullet strings.
func GenerateTakeaways(ctx context.Context, tc TextCompleter, results []core.SegmentResult) ([]string, error) {
	contextBlock := BuildFullContext(results)

	prompt := "You are analyzing a video. Below is the full transcript and visual description.\n\n" +
		contextBlock + "\n\n" +
		"Extract the 5-8 most important key takeaways from this video. " +
		"Return ONLY a JSON array of strings, each being one takeaway. " +
		"Be specific and reference concrete details from the content. " +
		"Return ONLY valid JSON, no markdown fences."

	raw, err := tc.TextCompletion(ctx, prompt, "", 1024)
	if err != nil {
		return []string{"Could not generate takeaways."}, err
	}

	var takeaways []string
	if jsonErr := parseJSONArray(raw, &takeaways); jsonErr != nil {
		return []string{"Could not generate takeaways."}, nil
	}
	return takeaways, nil
}

// GenerateStudyGuide produces a per-topic breakdown of the video.
func GenerateStudyGuide(ctx context.Context, tc TextCompleter, results []core.SegmentResult) ([]core.StudyTopic, error) {
	contextBlock := BuildFullContext(results)

	prompt := "You are an expert educator creating a study guide from a video. " +
		"Below is the full transcript and visual description organized by time.\n\n" +
		contextBlock + "\n\n" +
		"Create a comprehensive study guide that breaks the video into major topics. " +
		"For each topic, provide:\n" +
		"- \"topic\": a clear, descriptive topic title\n" +
		"- \"timestamp\": the start time in seconds (number) where this topic begins\n" +
		"- \"overview\": a 1-2 sentence high-level summary of the topic\n" +
		"- \"details\": a thorough 3-6 sentence explanation covering what was discussed, " +
		"key arguments, examples given, and any data or visuals shown. " +
		"Write this as if explaining to a student who missed the lecture.\n" +
		"- \"key_terms\": an array of 2-5 important terms, concepts, or names mentioned\n\n" +
		"Create between 4-8 topics depending on video length. " +
		"Cover ALL major content -- do not skip sections. " +
		"Return ONLY a valid JSON array, no markdown fences."

	raw, err := tc.TextCompletion(ctx, prompt, "", 3000)
	if err != nil {
		return fallbackStudyGuide(results), err
	}

	var guide []core.StudyTopic
	if jsonErr := parseJSONArray(raw, &guide); jsonErr != nil {
		return fallbackStudyGuide(results), nil
	}

	maxTime := maxEndTime(results)
	for i := range guide {
		guide[i].Timestamp = clamp(guide[i].Timestamp, 0, maxTime)
	}
	return guide, nil
}

// GenerateQuestions produces a mixed practice quiz over the video content.
func GenerateQuestions(ctx context.Context, tc TextCompleter, results []core.SegmentResult) ([]core.Question, error) {
	contextBlock := BuildFullContext(results)

	prompt := "You are an expert educator creating a quiz to test a student's understanding " +
		"of the following video content.\n\n" +
		contextBlock + "\n\n" +
		"Generate 8-12 practice questions that test real understanding (not just recall). " +
		"Mix the following question types:\n" +
		"- Multiple choice (provide 4 options labeled A, B, C, D)\n" +
		"- Short answer / open-ended\n" +
		"- True/False\n\n" +
		"For EACH question return a JSON object with:\n" +
		"- \"question\": the question text\n" +
		"- \"type\": one of \"multiple_choice\", \"short_answer\", or \"true_false\"\n" +
		"- \"options\": array of 4 option strings (only for multiple_choice, omit for others)\n" +
		"- \"answer\": the correct answer\n" +
		"- \"explanation\": 1-2 sentence explanation referencing specific video content\n\n" +
		"Make questions progressively harder. " +
		"Return ONLY a valid JSON array, no markdown fences."

	fallback := []core.Question{{
		Question:    "What were the main topics discussed in this video?",
		Type:        "short_answer",
		Answer:      "Review the study guide for a full breakdown.",
		Explanation: "Questions could not be auto-generated.",
	}}

	raw, err := tc.TextCompletion(ctx, prompt, "", 3000)
	if err != nil {
		return fallback, err
	}

	var questions []core.Question
	if jsonErr := parseJSONArray(raw, &questions); jsonErr != nil {
		return fallback, nil
	}
	return questions, nil
}

// Evaluation is the graded outcome of a short-answer response.
type Evaluation struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}

// EvaluateShortAnswer grades a student's free-form answer against the model
// answer, tolerating wording differences.
func EvaluateShortAnswer(ctx context.Context, tc TextCompleter, question, correctAnswer, userAnswer string) Evaluation {
	prompt := "You are a fair but encouraging teacher grading a student's short answer.\n\n" +
		fmt.Sprintf("Question: %s\nModel Answer: %s\nStudent's Answer: %s\n\n", question, correctAnswer, userAnswer) +
		"Evaluate whether the student's answer demonstrates understanding of the concept. " +
		"Minor wording differences are fine -- focus on whether the core idea is correct.\n\n" +
		"Return ONLY a JSON object with:\n" +
		"- \"correct\": true if the answer is substantially correct, false otherwise\n" +
		"- \"feedback\": a brief 1-2 sentence response\n\n" +
		"Return ONLY valid JSON, no markdown fences."

	fallback := Evaluation{Correct: false, Feedback: "Could not evaluate your answer."}

	raw, err := tc.TextCompletion(ctx, prompt, "", 300)
	if err != nil {
		return fallback
	}

	cleaned := stripFences(raw)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end <= start {
		return fallback
	}
	var eval Evaluation
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &eval); err != nil {
		return fallback
	}
	return eval
}

// SearchVideo finds where a topic appears across transcript segments, visual
// descriptions, and chapter titles. Matches within 5 seconds of each other
// are collapsed to the earliest.
func SearchVideo(query string, results []core.SegmentResult, transcript []core.Segment, chapters []core.Chapter) []core.SearchResult {
	q := strings.ToLower(query)
	matches := make([]core.SearchResult, 0)

	for _, seg := range transcript {
		if strings.Contains(strings.ToLower(seg.Text), q) {
			matches = append(matches, core.SearchResult{
				Time:      seg.Start,
				Timestamp: core.FormatTime(seg.Start),
				Context:   seg.Text,
				Source:    "transcript",
			})
		}
	}

	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Description), q) {
			context := r.Description
			if short := truncate(context, 200); short != context {
				context = short + "..."
			}
			matches = append(matches, core.SearchResult{
				Time:      r.Start,
				Timestamp: core.FormatTime(r.Start),
				Context:   context,
				Source:    "visual",
			})
		}
	}

	for _, ch := range chapters {
		if strings.Contains(strings.ToLower(ch.Title), q) || strings.Contains(strings.ToLower(ch.Summary), q) {
			context := ch.Title
			if ch.Summary != "" {
				context = ch.Title + ": " + ch.Summary
			}
			matches = append(matches, core.SearchResult{
				Time:      ch.Time,
				Timestamp: core.FormatTime(ch.Time),
				Context:   context,
				Source:    "chapter",
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Time < matches[j].Time })
	deduped := make([]core.SearchResult, 0, len(matches))
	for _, m := range matches {
		if len(deduped) == 0 || m.Time-deduped[len(deduped)-1].Time > 5 {
			deduped = append(deduped, m)
		}
	}
	return deduped
}

// FallbackChapters builds simple time-based chapters when generation fails.
func FallbackChapters(results []core.SegmentResult) []core.Chapter {
	chapters := make([]core.Chapter, 0, len(results))
	for _, r := range results {
		title := strings.TrimSpace(truncate(r.Transcript, 50))
		if title == "" {
			title = "Segment at " + core.FormatTime(r.Start)
		}
		chapters = append(chapters, core.Chapter{
			Time:    r.Start,
			Title:   title,
			Summary: truncate(r.Description, 100),
		})
	}
	return chapters
}

func fallbackStudyGuide(results []core.SegmentResult) []core.StudyTopic {
	guide := make([]core.StudyTopic, 0, len(results))
	for _, r := range results {
		topic := truncate(r.Transcript, 50)
		if topic == "" {
			topic = "Segment at " + core.FormatTime(r.Start)
		}
		guide = append(guide, core.StudyTopic{
			Topic:     topic,
			Timestamp: r.Start,
			Overview:  truncate(r.Description, 120),
			Details:   r.Transcript,
			KeyTerms:  []string{},
		})
	}
	return guide
}

var fenceRe = regexp.MustCompile("```(?:json)?\\s*")

func stripFences(raw string) string {
	cleaned := fenceRe.ReplaceAllString(raw, "")
	return strings.TrimRight(strings.TrimSpace(cleaned), "`")
}

// parseJSONArray extracts the first JSON array from model output, tolerating
// markdown fences and surrounding prose.
func parseJSONArray(raw string, out any) error {
	cleaned := stripFences(raw)
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON array found in model output")
	}
	return json.Unmarshal([]byte(cleaned[start:end+1]), out)
}

func maxEndTime(results []core.SegmentResult) float64 {
	maxTime := 0.0
	for _, r := range results {
		if r.End > maxTime {
			maxTime = r.End
		}
	}
	return maxTime
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// truncate cuts s to at most n runes; byte slicing could split a multibyte
// character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
