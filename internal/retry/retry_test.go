package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }

var errTransient = errors.New("transient")

func TestDo_SuccessFirstTry(t *testing.T) {
	timer := newRecordingTimer()
	p := Policy{MaxAttempts: 3, Backoff: Constant(time.Minute)}.WithTimer(timer)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(timer.waits) != 0 {
		t.Errorf("expected no waits, got %v", timer.waits)
	}
}

func TestDo_EventualSuccess(t *testing.T) {
	timer := newRecordingTimer()
	p := Policy{MaxAttempts: 3, Backoff: Constant(time.Minute)}.WithTimer(timer)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(timer.waits) != 2 {
		t.Errorf("expected 2 waits, got %v", timer.waits)
	}
}

func TestDo_ExhaustedConstantBackoff(t *testing.T) {
	timer := newRecordingTimer()
	var notified []int
	p := Policy{
		MaxAttempts: 3,
		Backoff:     Constant(60 * time.Second),
		Notify: func(_ error, attempt int, _ time.Duration) {
			notified = append(notified, attempt)
		},
	}.WithTimer(timer)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	if calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("expected last error to be wrapped, got %v", err)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 3 {
		t.Errorf("expected ExhaustedError with 3 attempts, got %#v", err)
	}
	if !strings.Contains(err.Error(), "after 3 retries") {
		t.Errorf("message should name the attempt count: %q", err.Error())
	}

	var total time.Duration
	for _, w := range timer.waits {
		if w != 60*time.Second {
			t.Errorf("expected constant 60s wait, got %v", w)
		}
		total += w
	}
	if total < 2*60*time.Second {
		t.Errorf("expected at least 2 x backoff waited, got %v", total)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Errorf("expected notifications for attempts [1 2], got %v", notified)
	}
}

func TestDo_ExhaustedRealClock(t *testing.T) {
	const interval = 15 * time.Millisecond
	p := Policy{MaxAttempts: 3, Backoff: Constant(interval)}

	start := time.Now()
	err := p.Do(context.Background(), func(context.Context) error { return errTransient })
	elapsed := time.Since(start)

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if elapsed < 2*interval {
		t.Errorf("expected elapsed >= %v, got %v", 2*interval, elapsed)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	timer := newRecordingTimer()
	fatal := errors.New("bad request")
	p := Policy{
		MaxAttempts: 3,
		Backoff:     Constant(time.Minute),
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
	}.WithTimer(timer)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("non-retryable error must not be reported as exhaustion")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(timer.waits) != 0 {
		t.Errorf("expected no waits, got %v", timer.waits)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	timer := newRecordingTimer()
	p := Policy{MaxAttempts: 5, Backoff: Constant(time.Minute)}.WithTimer(timer)

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		calls := 0
		err := Policy{MaxAttempts: n}.Do(context.Background(), func(context.Context) error {
			calls++
			return nil
		})
		if !errors.Is(err, ErrInvalidMaxAttempts) {
			t.Errorf("MaxAttempts=%d: expected ErrInvalidMaxAttempts, got %v", n, err)
		}
		if calls != 0 {
			t.Errorf("MaxAttempts=%d: expected no calls, got %d", n, calls)
		}
	}
}

func TestExponential_GrowsAndCaps(t *testing.T) {
	timer := newRecordingTimer()
	p := Policy{
		MaxAttempts: 5,
		Backoff:     Exponential(time.Second, 3*time.Second, 2, 0),
	}.WithTimer(timer)

	_ = p.Do(context.Background(), func(context.Context) error { return errTransient })

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	if len(timer.waits) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), timer.waits)
	}
	for i, w := range want {
		if timer.waits[i] != w {
			t.Errorf("wait[%d] = %v, want %v", i, timer.waits[i], w)
		}
	}
}
