package processors

import (
	"context"
	"log"
	"sync"

	"videoAnalyze/core"
)

// FrameDescriber is the slice of the request client the scheduler needs.
type FrameDescriber interface {
	CheckAuth() error
	DescribeFrames(ctx context.Context, framesB64 []string, prompt string) (string, error)
}

// UnavailableMarker prefixes every degraded description so downstream
// consumers can tell fallback output from genuine analysis.
const UnavailableMarker = "[Visual analysis unavailable for this segment]"

// ProgressFunc receives (completed, total) after each segment finishes.
// completed is a count, not an index; completion order is nondeterministic.
type ProgressFunc func(completed, total int)

// SegmentScheduler fans segment jobs out across a fixed-size worker pool and
// collects results in input order. A segment whose call ultimately fails is
// degraded to a transcript fallback instead of failing the whole run: the
// other segments' completed calls are sunk cost worth keeping.
type SegmentScheduler struct {
	describer FrameDescriber
	workers   int
}

func NewSegmentScheduler(describer FrameDescriber, workers int) *SegmentScheduler {
	if workers <= 0 {
		workers = 3
	}
	return &SegmentScheduler{describer: describer, workers: workers}
}

// AnalyzeSegments runs every job through the worker pool and returns one
// result per job, in job order. Results land in a pre-sized slice addressed
// by job index, so input ordering survives out-of-order completion. The only
// hard failure is a missing credential; per-job errors degrade in place.
//
// Once ctx is cancelled, jobs not yet started are degraded without touching
// the network and the full-length result slice is returned with ctx.Err().
func (s *SegmentScheduler) AnalyzeSegments(ctx context.Context, jobs []core.SegmentJob, onProgress ProgressFunc) ([]core.SegmentResult, error) {
	if err := s.describer.CheckAuth(); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return []core.SegmentResult{}, nil
	}

	results := make([]core.SegmentResult, len(jobs))

	jobCh := make(chan core.SegmentJob, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	// Workers report completions here; a single consumer counts them and
	// invokes the callback, so onProgress never runs concurrently.
	doneCh := make(chan struct{}, len(jobs))
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		completed := 0
		for range doneCh {
			completed++
			if onProgress != nil {
				onProgress(completed, len(jobs))
			}
		}
	}()

	workers := s.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				// Disjoint index writes; no lock needed.
				results[job.Index] = s.analyzeOne(ctx, job)
				doneCh <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(doneCh)
	<-aggDone

	return results, ctx.Err()
}

func (s *SegmentScheduler) analyzeOne(ctx context.Context, job core.SegmentJob) core.SegmentResult {
	result := core.SegmentResult{
		Start:      job.Start,
		End:        job.End,
		Transcript: job.Transcript,
	}

	if ctx.Err() != nil {
		result.Description = fallbackDescription(job.Transcript)
		result.Degraded = true
		return result
	}

	desc, err := s.describer.DescribeFrames(ctx, job.FramesB64, SegmentPrompt(job))
	if err != nil {
		log.Printf("segment %d (%s-%s) failed: %v, using transcript fallback",
			job.Index, core.FormatTime(job.Start), core.FormatTime(job.End), err)
		result.Description = fallbackDescription(job.Transcript)
		result.Degraded = true
		return result
	}

	result.Description = desc
	return result
}

func fallbackDescription(transcript string) string {
	if transcript == "" {
		return UnavailableMarker
	}
	return UnavailableMarker + " " + transcript
}
