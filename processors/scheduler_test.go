package processors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"videoAnalyze/core"
)

// stubDescriber simulates the request client with controllable failures and
// latency, tracking the concurrent-call high-water mark.
type stubDescriber struct {
	mu        sync.Mutex
	calls     int
	inFlight  int
	highWater int

	authErr error
	failFor map[string]bool // first frame payload -> always fail
	latency func() time.Duration
}

func (s *stubDescriber) CheckAuth() error { return s.authErr }

func (s *stubDescriber) DescribeFrames(ctx context.Context, framesB64 []string, prompt string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	if s.inFlight > s.highWater {
		s.highWater = s.inFlight
	}
	s.mu.Unlock()

	if s.latency != nil {
		time.Sleep(s.latency())
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	key := ""
	if len(framesB64) > 0 {
		key = framesB64[0]
	}
	if s.failFor[key] {
		return "", errors.New("simulated failure")
	}
	return "description of " + key, nil
}

func (s *stubDescriber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func makeJobs(n int) []core.SegmentJob {
	jobs := make([]core.SegmentJob, n)
	for i := 0; i < n; i++ {
		jobs[i] = core.SegmentJob{
			Index:      i,
			Start:      float64(i) * 120,
			End:        float64(i+1) * 120,
			FramesB64:  []string{fmt.Sprintf("frame-%d", i)},
			Transcript: fmt.Sprintf("transcript %d", i),
		}
	}
	return jobs
}

func TestSchedulerPreservesOrder(t *testing.T) {
	for _, n := range []int{0, 1, 50} {
		stub := &stubDescriber{
			latency: func() time.Duration { return time.Duration(rand.Intn(20)) * time.Millisecond },
		}
		scheduler := NewSegmentScheduler(stub, 3)

		jobs := makeJobs(n)
		results, err := scheduler.AnalyzeSegments(context.Background(), jobs, nil)
		if err != nil {
			t.Fatalf("n=%d: AnalyzeSegments failed: %v", n, err)
		}
		if len(results) != n {
			t.Fatalf("n=%d: expected %d results, got %d", n, n, len(results))
		}
		for i, r := range results {
			if r.Start != jobs[i].Start || r.End != jobs[i].End {
				t.Errorf("n=%d: result %d has range %.0f-%.0f, want %.0f-%.0f", n, i, r.Start, r.End, jobs[i].Start, jobs[i].End)
			}
			want := fmt.Sprintf("description of frame-%d", i)
			if r.Description != want {
				t.Errorf("n=%d: result %d description %q, want %q", n, i, r.Description, want)
			}
		}
	}
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	stub := &stubDescriber{
		latency: func() time.Duration { return 10 * time.Millisecond },
	}
	scheduler := NewSegmentScheduler(stub, 3)

	if _, err := scheduler.AnalyzeSegments(context.Background(), makeJobs(20), nil); err != nil {
		t.Fatalf("AnalyzeSegments failed: %v", err)
	}
	if stub.highWater > 3 {
		t.Errorf("concurrent calls peaked at %d, want <= 3", stub.highWater)
	}
}

func TestSchedulerDegradesFailedSegments(t *testing.T) {
	stub := &stubDescriber{failFor: map[string]bool{"frame-2": true}}
	scheduler := NewSegmentScheduler(stub, 3)

	jobs := makeJobs(5)
	results, err := scheduler.AnalyzeSegments(context.Background(), jobs, nil)
	if err != nil {
		t.Fatalf("AnalyzeSegments failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	for i, r := range results {
		if i == 2 {
			if !r.Degraded {
				t.Errorf("result 2 should be degraded")
			}
			if !strings.HasPrefix(r.Description, UnavailableMarker) {
				t.Errorf("degraded description missing marker: %q", r.Description)
			}
			if !strings.Contains(r.Description, jobs[2].Transcript) {
				t.Errorf("degraded description missing transcript: %q", r.Description)
			}
		} else if r.Degraded {
			t.Errorf("result %d unexpectedly degraded", i)
		}
	}
}

func TestSchedulerDegradedWithEmptyTranscript(t *testing.T) {
	stub := &stubDescriber{failFor: map[string]bool{"frame-0": true}}
	scheduler := NewSegmentScheduler(stub, 1)

	jobs := makeJobs(1)
	jobs[0].Transcript = ""
	results, err := scheduler.AnalyzeSegments(context.Background(), jobs, nil)
	if err != nil {
		t.Fatalf("AnalyzeSegments failed: %v", err)
	}
	if results[0].Description != UnavailableMarker {
		t.Errorf("expected bare marker, got %q", results[0].Description)
	}
}

func TestSchedulerEmptyInput(t *testing.T) {
	stub := &stubDescriber{}
	scheduler := NewSegmentScheduler(stub, 3)

	progressCalls := 0
	results, err := scheduler.AnalyzeSegments(context.Background(), nil, func(completed, total int) {
		progressCalls++
	})
	if err != nil {
		t.Fatalf("AnalyzeSegments failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
	if progressCalls != 0 {
		t.Errorf("expected 0 progress calls, got %d", progressCalls)
	}
	if stub.callCount() != 0 {
		t.Errorf("expected 0 describer calls, got %d", stub.callCount())
	}
}

func TestSchedulerProgressIsMonotonic(t *testing.T) {
	stub := &stubDescriber{
		latency: func() time.Duration { return time.Duration(rand.Intn(10)) * time.Millisecond },
	}
	scheduler := NewSegmentScheduler(stub, 3)

	// The aggregator invokes the callback from a single goroutine, so no
	// locking is needed here.
	var completions []int
	var totals []int
	_, err := scheduler.AnalyzeSegments(context.Background(), makeJobs(12), func(completed, total int) {
		completions = append(completions, completed)
		totals = append(totals, total)
	})
	if err != nil {
		t.Fatalf("AnalyzeSegments failed: %v", err)
	}

	if len(completions) != 12 {
		t.Fatalf("expected 12 progress calls, got %d", len(completions))
	}
	for i, c := range completions {
		if c != i+1 {
			t.Errorf("progress call %d reported completed=%d, want %d", i, c, i+1)
		}
		if totals[i] != 12 {
			t.Errorf("progress call %d reported total=%d, want 12", i, totals[i])
		}
	}
}

func TestSchedulerMissingCredentialShortCircuits(t *testing.T) {
	stub := &stubDescriber{authErr: core.ErrAPIKeyMissing}
	scheduler := NewSegmentScheduler(stub, 3)

	_, err := scheduler.AnalyzeSegments(context.Background(), makeJobs(3), nil)
	if !errors.Is(err, core.ErrAPIKeyMissing) {
		t.Fatalf("expected ErrAPIKeyMissing, got %v", err)
	}
	if stub.callCount() != 0 {
		t.Errorf("expected 0 network calls, got %d", stub.callCount())
	}
}

func TestSchedulerCancelledContextDegradesRemainder(t *testing.T) {
	stub := &stubDescriber{}
	scheduler := NewSegmentScheduler(stub, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := makeJobs(6)
	results, err := scheduler.AnalyzeSegments(ctx, jobs, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.Degraded {
			t.Errorf("result %d should be degraded after cancellation", i)
		}
		if r.Start != jobs[i].Start {
			t.Errorf("result %d lost its time range", i)
		}
	}
	if stub.callCount() != 0 {
		t.Errorf("expected 0 network calls after cancellation, got %d", stub.callCount())
	}
}
