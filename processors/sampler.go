package processors

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"videoAnalyze/core"
)

const maxFramePx = 512

// segmentPlan is the pure scheduling part of frame sampling: one time range
// plus the instants to grab stills at.
type segmentPlan struct {
	Start       float64
	End         float64
	SampleTimes []float64
}

// planSegments cuts duration into fixed-length segments and picks evenly
// spaced sample instants in each. A short tail segment gets proportionally
// fewer stills, never less than one (taken at its midpoint).
func planSegments(duration, segmentDuration float64, framesPerSegment int) []segmentPlan {
	plans := make([]segmentPlan, 0)
	for t := 0.0; t < duration; {
		end := t + segmentDuration
		if end > duration {
			end = duration
		}
		segLen := end - t

		n := int(float64(framesPerSegment) * segLen / segmentDuration)
		if n < 1 {
			n = 1
		}

		times := make([]float64, 0, n)
		if n == 1 {
			times = append(times, t+segLen/2)
		} else {
			step := segLen / float64(n-1)
			for i := 0; i < n; i++ {
				times = append(times, t+float64(i)*step)
			}
		}

		plans = append(plans, segmentPlan{Start: t, End: end, SampleTimes: times})
		t = end
	}
	return plans
}

// SampleSegments probes the video's duration, splits it into segments of
// segmentDuration seconds, and extracts up to framesPerSegment JPEG stills
// per segment via ffmpeg, scaled to at most 512px wide. Transcript excerpts
// are attached separately.
func SampleSegments(videoPath string, segmentDuration float64, framesPerSegment int) ([]core.SegmentJob, error) {
	duration, err := probeDuration(videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %v", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("invalid video duration %.2f", duration)
	}

	tmpDir, err := os.MkdirTemp("", "frames-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	plans := planSegments(duration, segmentDuration, framesPerSegment)
	jobs := make([]core.SegmentJob, 0, len(plans))
	for i, plan := range plans {
		frames := make([]string, 0, len(plan.SampleTimes))
		for j, ts := range plan.SampleTimes {
			out := filepath.Join(tmpDir, fmt.Sprintf("seg%03d_%02d.jpg", i, j))
			b64, err := extractFrame(videoPath, ts, out)
			if err != nil {
				// A single unreadable instant is not fatal; the segment
				// just carries fewer stills.
				continue
			}
			frames = append(frames, b64)
		}
		jobs = append(jobs, core.SegmentJob{
			Index:     i,
			Start:     plan.Start,
			End:       plan.End,
			FramesB64: frames,
		})
	}
	return jobs, nil
}

func extractFrame(videoPath string, timestamp float64, outPath string) (string, error) {
	cmd := exec.Command("ffmpeg", "-y",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", maxFramePx),
		"-q:v", "5",
		outPath)
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg extract at %.2fs: %v", timestamp, err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func probeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return 0, err
	}
	s := strings.TrimSpace(out.String())
	return strconv.ParseFloat(s, 64)
}

// HasAudioStream reports whether the file carries at least one audio track.
// Transcription of an audio-less file fails in confusing ways downstream, so
// callers check first and skip ASR instead.
func HasAudioStream(path string) bool {
	cmd := exec.Command("ffprobe", "-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		// ffprobe unavailable or unreadable file: let ASR try anyway.
		return true
	}
	return strings.TrimSpace(out.String()) != ""
}
