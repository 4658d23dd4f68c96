package processors

import (
	"math"
	"testing"
)

func TestPlanSegmentsEvenDuration(t *testing.T) {
	plans := planSegments(360, 120, 5)
	if len(plans) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(plans))
	}
	for i, p := range plans {
		if p.Start != float64(i)*120 || p.End != float64(i+1)*120 {
			t.Errorf("segment %d range %.0f-%.0f", i, p.Start, p.End)
		}
		if len(p.SampleTimes) != 5 {
			t.Errorf("segment %d has %d sample times, want 5", i, len(p.SampleTimes))
		}
	}

	// evenly spaced across the segment, endpoints included
	first := plans[0].SampleTimes
	for i, want := range []float64{0, 30, 60, 90, 120} {
		if math.Abs(first[i]-want) > 1e-9 {
			t.Errorf("sample %d at %.2f, want %.2f", i, first[i], want)
		}
	}
}

func TestPlanSegmentsShortTail(t *testing.T) {
	plans := planSegments(300, 120, 5)
	if len(plans) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(plans))
	}
	tail := plans[2]
	if tail.Start != 240 || tail.End != 300 {
		t.Fatalf("tail range %.0f-%.0f", tail.Start, tail.End)
	}
	// 60s of a 120s budget keeps a proportional 2 of 5 stills
	if len(tail.SampleTimes) != 2 {
		t.Errorf("tail has %d sample times, want 2", len(tail.SampleTimes))
	}
}

func TestPlanSegmentsTinyVideo(t *testing.T) {
	plans := planSegments(10, 120, 5)
	if len(plans) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(plans))
	}
	p := plans[0]
	if len(p.SampleTimes) != 1 {
		t.Fatalf("expected a single midpoint still, got %d", len(p.SampleTimes))
	}
	if math.Abs(p.SampleTimes[0]-5) > 1e-9 {
		t.Errorf("midpoint at %.2f, want 5", p.SampleTimes[0])
	}
}

func TestPlanSegmentsZeroDuration(t *testing.T) {
	if plans := planSegments(0, 120, 5); len(plans) != 0 {
		t.Errorf("expected no segments for zero duration, got %d", len(plans))
	}
}
