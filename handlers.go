package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"videoAnalyze/config"
	"videoAnalyze/core"
	"videoAnalyze/processors"
)

type AnalyzeRequest struct {
	VideoPath string `json:"video_path"`
}

type Step struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "completed", "failed", "skipped"
	Error  string `json:"error,omitempty"`
}

type Analysis struct {
	JobID      string               `json:"job_id"`
	VideoPath  string               `json:"video_path"`
	Transcript []core.Segment       `json:"transcript"`
	Segments   []core.SegmentResult `json:"segments"`
	Chapters   []core.Chapter       `json:"chapters"`
	Takeaways  []string             `json:"takeaways"`
	Context    string               `json:"context"`
}

type AnalyzeResponse struct {
	JobID    string    `json:"job_id"`
	Message  string    `json:"message"`
	Steps    []Step    `json:"steps"`
	Warnings []string  `json:"warnings,omitempty"`
	Analysis *Analysis `json:"analysis,omitempty"`
}

func analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.VideoPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video_path is required"})
		return
	}
	if _, err := os.Stat(req.VideoPath); os.IsNotExist(err) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Video file not found: %s", req.VideoPath)})
		return
	}

	resp := analyzeVideo(r.Context(), req.VideoPath)
	status := http.StatusOK
	if resp.Analysis == nil {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// analyzeVideo runs the full pipeline: sample frames, transcribe, align,
// fan the segments out to the vision model, assemble context, generate
// chapters and takeaways, then persist and index everything.
func analyzeVideo(ctx context.Context, videoPath string) AnalyzeResponse {
	resp := AnalyzeResponse{
		JobID: newID(),
		Steps: make([]Step, 0, 6),
	}
	jobDir := filepath.Join(dataRoot(), resp.JobID)

	cfg, err := config.LoadConfig()
	if err != nil {
		resp.Steps = append(resp.Steps, Step{Name: "config", Status: "failed", Error: err.Error()})
		resp.Message = "Configuration load failed"
		return resp
	}

	// Step 1: sample segment frames
	log.Printf("[%s] sampling frames from %s", resp.JobID, videoPath)
	jobs, err := processors.SampleSegments(videoPath, float64(cfg.SegmentDurationSec), cfg.FramesPerSegment)
	if err != nil {
		resp.Steps = append(resp.Steps, Step{Name: "sample", Status: "failed", Error: err.Error()})
		resp.Message = "Frame sampling failed"
		return resp
	}
	resp.Steps = append(resp.Steps, Step{Name: "sample", Status: "completed"})

	// Step 2: transcribe audio
	var transcript []core.Segment
	if processors.HasAudioStream(videoPath) {
		audioPath := filepath.Join(jobDir, "audio.wav")
		err = os.MkdirAll(jobDir, 0755)
		if err == nil {
			err = processors.ExtractAudio(videoPath, audioPath)
		}
		if err != nil {
			resp.Steps = append(resp.Steps, Step{Name: "transcribe", Status: "failed", Error: err.Error()})
			resp.Warnings = append(resp.Warnings, "audio extraction failed, continuing without transcript")
		} else {
			asr := processors.PickASRProvider(cfg)
			transcript, err = asr.Transcribe(audioPath)
			if err != nil {
				resp.Steps = append(resp.Steps, Step{Name: "transcribe", Status: "failed", Error: err.Error()})
				resp.Warnings = append(resp.Warnings, "transcription failed, continuing without transcript")
				transcript = nil
			} else {
				resp.Steps = append(resp.Steps, Step{Name: "transcribe", Status: "completed"})
				_ = saveJSON(filepath.Join(jobDir, "transcript.json"), transcript)
			}
		}
	} else {
		resp.Steps = append(resp.Steps, Step{Name: "transcribe", Status: "skipped"})
		resp.Warnings = append(resp.Warnings, "video has no audio stream")
	}

	// Step 3: align transcript excerpts to segments
	processors.AttachTranscripts(jobs, transcript)

	// Step 4: visual analysis across the worker pool
	client := processors.NewNemotronClient(cfg)
	scheduler := processors.NewSegmentScheduler(client, cfg.MaxWorkers)
	results, err := scheduler.AnalyzeSegments(ctx, jobs, func(completed, total int) {
		log.Printf("[%s] analyzed %d/%d segments", resp.JobID, completed, total)
	})
	if err != nil {
		resp.Steps = append(resp.Steps, Step{Name: "analyze", Status: "failed", Error: err.Error()})
		resp.Message = "Visual analysis failed"
		return resp
	}
	resp.Steps = append(resp.Steps, Step{Name: "analyze", Status: "completed"})

	// Step 5: assemble context and generate intelligence
	contextBlock := processors.BuildFullContext(results)
	_ = os.WriteFile(filepath.Join(jobDir, "context.txt"), []byte(contextBlock), 0644)

	chapters, err := processors.GenerateChapters(ctx, client, results)
	if err != nil {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("chapter generation degraded: %v", err))
	}
	takeaways, err := processors.GenerateTakeaways(ctx, client, results)
	if err != nil {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("takeaway generation degraded: %v", err))
	}
	resp.Steps = append(resp.Steps, Step{Name: "intelligence", Status: "completed"})

	// Step 6: index into the vector store
	count := globalStore.Upsert(resp.JobID, results)
	resp.Steps = append(resp.Steps, Step{Name: "store", Status: "completed"})
	log.Printf("[%s] indexed %d segments", resp.JobID, count)

	analysis := &Analysis{
		JobID:      resp.JobID,
		VideoPath:  videoPath,
		Transcript: transcript,
		Segments:   results,
		Chapters:   chapters,
		Takeaways:  takeaways,
		Context:    contextBlock,
	}
	if err := saveJSON(filepath.Join(jobDir, "analysis.json"), analysis); err != nil {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("failed to persist analysis: %v", err))
	}

	resp.Analysis = analysis
	resp.Message = "Analysis completed"
	return resp
}

type QueryRequest struct {
	JobID    string `json:"job_id"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type QueryResponse struct {
	JobID    string     `json:"job_id"`
	Question string     `json:"question"`
	Answer   string     `json:"answer"`
	Hits     []core.Hit `json:"hits"`
}

func queryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.JobID == "" || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job_id and question required"})
		return
	}

	analysis, err := loadAnalysis(req.JobID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("analysis not found: %v", err)})
		return
	}

	hits := globalStore.Search(req.JobID, req.Question, req.TopK)

	cfg, err := config.LoadConfig()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	client := processors.NewNemotronClient(cfg)
	answer, err := client.ChatWithContext(r.Context(), analysis.Context, req.Question, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{JobID: req.JobID, Question: req.Question, Answer: answer, Hits: hits})
}

type SearchRequest struct {
	JobID string `json:"job_id"`
	Query string `json:"query"`
}

func searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.JobID == "" || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job_id and query required"})
		return
	}

	analysis, err := loadAnalysis(req.JobID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("analysis not found: %v", err)})
		return
	}

	matches := processors.SearchVideo(req.Query, analysis.Segments, analysis.Transcript, analysis.Chapters)
	writeJSON(w, http.StatusOK, map[string]any{"job_id": req.JobID, "query": req.Query, "results": matches})
}

type GuideRequest struct {
	JobID string `json:"job_id"`
}

func guideHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req GuideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job_id required"})
		return
	}
	analysis, err := loadAnalysis(req.JobID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("analysis not found: %v", err)})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	client := processors.NewNemotronClient(cfg)
	guide, err := processors.GenerateStudyGuide(r.Context(), client, analysis.Segments)
	if err != nil {
		log.Printf("study guide generation degraded: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": req.JobID, "guide": guide})
}

func quizHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req GuideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job_id required"})
		return
	}
	analysis, err := loadAnalysis(req.JobID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("analysis not found: %v", err)})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	client := processors.NewNemotronClient(cfg)
	questions, err := processors.GenerateQuestions(r.Context(), client, analysis.Segments)
	if err != nil {
		log.Printf("question generation degraded: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": req.JobID, "questions": questions})
}

type GradeRequest struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	UserAnswer    string `json:"user_answer"`
}

func gradeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question, correct_answer and user_answer required"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	client := processors.NewNemotronClient(cfg)
	eval := processors.EvaluateShortAnswer(r.Context(), client, req.Question, req.CorrectAnswer, req.UserAnswer)
	writeJSON(w, http.StatusOK, eval)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.LoadConfig()
	status := map[string]any{"status": "ok"}
	if err != nil || !cfg.HasValidAPI() {
		status["status"] = "degraded"
		status["reason"] = "API not configured"
	}
	writeJSON(w, http.StatusOK, status)
}

func loadAnalysis(jobID string) (*Analysis, error) {
	var analysis Analysis
	path := filepath.Join(dataRoot(), jobID, "analysis.json")
	if err := loadJSON(path, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}
