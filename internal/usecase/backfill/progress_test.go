package backfill

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func fixedClock(t0 time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		now := t0.Add(time.Duration(n) * step)
		n++
		return now
	}
}

func TestProgressTracker_ReportsEveryInterval(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 10, 5)
	p.Start()

	for range 4 {
		p.Increment(1)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output before the interval, got %q", buf.String())
	}

	p.Increment(1)
	if !strings.Contains(buf.String(), "\rProgress: 5/10 (50.0%)") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestProgressTracker_FinishPrintsNewline(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 3, 10)
	p.Start()
	p.Increment(3)
	p.Finish()

	out := buf.String()
	if !strings.Contains(out, "Progress: 3/3 (100.0%)") {
		t.Errorf("output = %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("expected trailing newline")
	}
}

func TestProgressTracker_Rate(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 4, 2)
	p.now = fixedClock(time.Unix(0, 0), time.Second)
	p.Start()
	p.Increment(2)

	if !strings.Contains(buf.String(), "- 2.0 records/s") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestProgressTracker_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 0, 1)
	p.Start()
	p.Increment(1)

	if strings.Contains(buf.String(), "%") {
		t.Errorf("unexpected percentage in %q", buf.String())
	}
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf, 5, 1)
	p.Increment(1)
	p.Finish()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	if p.Elapsed() != 0 {
		t.Error("expected zero elapsed")
	}
}
