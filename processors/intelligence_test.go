package processors

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"videoAnalyze/core"
)

type stubCompleter struct {
	response string
	err      error
	calls    int
}

func (s *stubCompleter) TextCompletion(ctx context.Context, prompt, system string, maxTokens int) (string, error) {
	s.calls++
	return s.response, s.err
}

var analyzed = []core.SegmentResult{
	{Start: 0, End: 120, Transcript: "opening words about compilers", Description: "title slide with agenda"},
	{Start: 120, End: 240, Transcript: "lexing and parsing details", Description: "diagram of a parse tree"},
}

func TestParseJSONArray(t *testing.T) {
	var out []core.Chapter

	raw := "```json\n[{\"time\": 0, \"title\": \"Intro\", \"summary\": \"opening\"}]\n```"
	if err := parseJSONArray(raw, &out); err != nil {
		t.Fatalf("fenced array failed: %v", err)
	}
	if len(out) != 1 || out[0].Title != "Intro" {
		t.Errorf("unexpected parse: %+v", out)
	}

	raw = "Here are the chapters you asked for: [{\"time\": 5, \"title\": \"A\", \"summary\": \"\"}] hope that helps"
	if err := parseJSONArray(raw, &out); err != nil {
		t.Fatalf("array with prose failed: %v", err)
	}
	if out[0].Time != 5 {
		t.Errorf("unexpected time %v", out[0].Time)
	}

	if err := parseJSONArray("no json here", &out); err == nil {
		t.Error("expected error for output without an array")
	}
}

func TestGenerateChaptersClampsTimes(t *testing.T) {
	stub := &stubCompleter{response: `[
		{"time": -10, "title": "Before the start", "summary": "s"},
		{"time": 9999, "title": "Past the end", "summary": "s"}
	]`}

	chapters, err := GenerateChapters(context.Background(), stub, analyzed)
	if err != nil {
		t.Fatalf("GenerateChapters failed: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Time != 0 {
		t.Errorf("negative time not clamped: %v", chapters[0].Time)
	}
	if chapters[1].Time != 240 {
		t.Errorf("overlong time not clamped to duration: %v", chapters[1].Time)
	}
}

func TestGenerateChaptersFallsBackOnGarbage(t *testing.T) {
	stub := &stubCompleter{response: "I cannot answer that."}

	chapters, err := GenerateChapters(context.Background(), stub, analyzed)
	if err != nil {
		t.Fatalf("GenerateChapters failed: %v", err)
	}
	if len(chapters) != len(analyzed) {
		t.Fatalf("expected one fallback chapter per segment, got %d", len(chapters))
	}
	if chapters[0].Time != 0 || chapters[1].Time != 120 {
		t.Errorf("fallback chapters misplaced: %+v", chapters)
	}
}

func TestGenerateChaptersSurfacesModelError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("endpoint down")}

	chapters, err := GenerateChapters(context.Background(), stub, analyzed)
	if err == nil {
		t.Fatal("expected the model error to surface")
	}
	if len(chapters) != len(analyzed) {
		t.Errorf("expected fallback chapters alongside the error, got %d", len(chapters))
	}
}

func TestFallbackChaptersTitles(t *testing.T) {
	results := []core.SegmentResult{
		{Start: 0, End: 120, Transcript: "", Description: "only visuals"},
	}
	chapters := FallbackChapters(results)
	if chapters[0].Title != "Segment at 00:00" {
		t.Errorf("empty transcript should yield placeholder title, got %q", chapters[0].Title)
	}
}

func TestGenerateTakeaways(t *testing.T) {
	stub := &stubCompleter{response: `["first takeaway", "second takeaway"]`}
	takeaways, err := GenerateTakeaways(context.Background(), stub, analyzed)
	if err != nil {
		t.Fatalf("GenerateTakeaways failed: %v", err)
	}
	if len(takeaways) != 2 || takeaways[0] != "first takeaway" {
		t.Errorf("unexpected takeaways: %v", takeaways)
	}
}

func TestEvaluateShortAnswer(t *testing.T) {
	stub := &stubCompleter{response: "```json\n{\"correct\": true, \"feedback\": \"nice work\"}\n```"}
	eval := EvaluateShortAnswer(context.Background(), stub, "q", "a", "my answer")
	if !eval.Correct || eval.Feedback != "nice work" {
		t.Errorf("unexpected evaluation: %+v", eval)
	}

	stub = &stubCompleter{response: "not json at all"}
	eval = EvaluateShortAnswer(context.Background(), stub, "q", "a", "my answer")
	if eval.Correct {
		t.Error("unparseable grading should not mark the answer correct")
	}
}

func TestSearchVideo(t *testing.T) {
	transcriptSegs := []core.Segment{
		{Start: 0, End: 10, Text: "we discuss parsing here"},
		{Start: 100, End: 110, Text: "more parsing talk"},
	}
	chapters := []core.Chapter{
		{Time: 102, Title: "Parsing deep dive", Summary: "grammar rules"},
	}

	results := SearchVideo("parsing", analyzed, transcriptSegs, chapters)

	// transcript hit at 0, transcript at 100; chapter at 102 dedupes into
	// the 100 hit; visual hit at 120 from "parse tree" does not match.
	if len(results) != 2 {
		t.Fatalf("expected 2 deduped results, got %d: %+v", len(results), results)
	}
	if results[0].Time != 0 || results[0].Source != "transcript" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Time != 100 {
		t.Errorf("unexpected second result: %+v", results[1])
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("é", 60)
	got := truncate(s, 50)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 50 {
		t.Errorf("expected 50 runes, got %d", n)
	}
	if short := "abc"; truncate(short, 50) != short {
		t.Errorf("short string should pass through unchanged")
	}
}

func TestSearchVideoTruncatesContextOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", 250) + " parse tree"
	results := []core.SegmentResult{{Start: 10, End: 20, Description: long}}

	hits := SearchVideo("parse tree", results, nil, nil)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if !utf8.ValidString(hits[0].Context) {
		t.Errorf("context is not valid UTF-8: %q", hits[0].Context)
	}
	if !strings.HasSuffix(hits[0].Context, "...") {
		t.Errorf("long context should carry an ellipsis: %q", hits[0].Context)
	}
}

func TestSearchVideoVisualSource(t *testing.T) {
	results := SearchVideo("parse tree", analyzed, nil, nil)
	if len(results) != 1 || results[0].Source != "visual" {
		t.Fatalf("expected a single visual hit, got %+v", results)
	}
	if results[0].Time != 120 {
		t.Errorf("visual hit at %v, want 120", results[0].Time)
	}
}
