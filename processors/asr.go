package processors

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoAnalyze/config"
	"videoAnalyze/core"
)

type ASRProvider interface {
	Transcribe(audioPath string) ([]core.Segment, error)
}

type MockASR struct{}

type WhisperASR struct {
	cli *openai.Client
}

func (m MockASR) Transcribe(audioPath string) ([]core.Segment, error) {
	dur, err := probeDuration(audioPath)
	if err != nil {
		return nil, err
	}
	segLen := 15.0
	segs := make([]core.Segment, 0)
	for start := 0.0; start < dur; start += segLen {
		end := start + segLen
		if end > dur {
			end = dur
		}
		segs = append(segs, core.Segment{Start: start, End: end, Text: fmt.Sprintf("Placeholder transcript from %.0fs to %.0fs", start, end)})
	}
	return segs, nil
}

func (w WhisperASR) Transcribe(audioPath string) ([]core.Segment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	resp, err := w.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    "whisper-1",
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, err
	}

	segs := make([]core.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segs = append(segs, core.Segment{Start: s.Start, End: s.End, Text: text})
	}
	if len(segs) > 0 {
		return segs, nil
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fmt.Errorf("empty transcription result")
	}
	dur, _ := probeDuration(audioPath)
	return []core.Segment{{Start: 0, End: dur, Text: text}}, nil
}

// PickASRProvider selects the transcription backend via the ASR env var.
// Defaults to the Whisper API when a credential is configured, mock otherwise.
func PickASRProvider(cfg *config.Config) ASRProvider {
	asr := strings.ToLower(strings.TrimSpace(os.Getenv("ASR")))

	if asr == "mock" {
		return MockASR{}
	}

	if !cfg.HasValidAPI() {
		fmt.Println("Warning: API configuration not found for Whisper ASR, using mock transcription")
		return MockASR{}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return WhisperASR{cli: openai.NewClientWithConfig(clientConfig)}
}

// ExtractAudio pulls a mono 16kHz wav out of the video for transcription.
func ExtractAudio(videoPath, audioOut string) error {
	cmd := exec.Command("ffmpeg", "-y", "-i", videoPath, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", audioOut)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
