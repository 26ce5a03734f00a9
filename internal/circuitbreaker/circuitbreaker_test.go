package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/mail"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newBreaker(maxFailures int, clock *manualClock) *CircuitBreaker {
	return New(Config{
		Name:            "test",
		MaxFailures:     maxFailures,
		RecoveryTimeout: 30 * time.Second,
		Now:             clock.Now,
	}, zap.NewNop())
}

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Allow()
		cb.RecordFailure()
	}
}

func expectState(t *testing.T, cb *CircuitBreaker, want State) {
	t.Helper()
	if got := cb.GetState(); got != want {
		t.Errorf("expected state %s, got %s", want, got)
	}
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := New(DefaultConfig("test"), zap.NewNop())
	expectState(t, cb, StateClosed)
	for i := 0; i < 10; i++ {
		if !cb.Allow() {
			t.Errorf("request %d should be allowed", i)
		}
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := newBreaker(3, newManualClock())
	trip(cb, 2)
	expectState(t, cb, StateClosed)
	trip(cb, 1)
	expectState(t, cb, StateOpen)
	if cb.Allow() {
		t.Error("open circuit should reject")
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	clock := newManualClock()
	cb := newBreaker(2, clock)
	trip(cb, 2)

	clock.Advance(29 * time.Second)
	if cb.Allow() {
		t.Error("should still reject before recovery timeout")
	}

	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Error("should allow a trial request after recovery timeout")
	}
	expectState(t, cb, StateHalfOpen)
	if cb.Allow() {
		t.Error("only one trial request at a time")
	}
}

func TestCircuitBreaker_TrialOutcome(t *testing.T) {
	clock := newManualClock()

	closes := newBreaker(2, clock)
	trip(closes, 2)
	clock.Advance(time.Minute)
	closes.Allow()
	closes.RecordSuccess()
	expectState(t, closes, StateClosed)

	reopens := newBreaker(2, clock)
	trip(reopens, 2)
	clock.Advance(time.Minute)
	reopens.Allow()
	reopens.RecordFailure()
	expectState(t, reopens, StateOpen)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newBreaker(3, newManualClock())
	trip(cb, 2)
	cb.Allow()
	cb.RecordSuccess()
	trip(cb, 2)
	expectState(t, cb, StateClosed)
}

func TestCircuitBreaker_AbandonFreesTrialSlot(t *testing.T) {
	clock := newManualClock()
	cb := newBreaker(1, clock)
	trip(cb, 1)
	clock.Advance(time.Minute)

	if !cb.Allow() {
		t.Fatal("expected trial request allowed")
	}
	cb.Abandon()
	if !cb.Allow() {
		t.Error("abandoned trial slot should be reusable")
	}
}

func TestCircuitBreaker_ResetAndStats(t *testing.T) {
	cb := newBreaker(2, newManualClock())
	cb.Allow()
	cb.RecordSuccess()
	trip(cb, 2)
	cb.Allow()

	s := cb.Stats()
	if s.Name != "test" || s.State != "open" {
		t.Errorf("unexpected name/state %q/%q", s.Name, s.State)
	}
	if s.TotalRequests != 4 {
		t.Errorf("expected 4 requests, got %d", s.TotalRequests)
	}
	if s.TotalSuccesses != 1 {
		t.Errorf("expected 1 success, got %d", s.TotalSuccesses)
	}
	if s.TotalFailures != 2 {
		t.Errorf("expected 2 failures, got %d", s.TotalFailures)
	}
	if s.TotalRejected != 1 {
		t.Errorf("expected 1 rejection, got %d", s.TotalRejected)
	}
	if s.LastFailure == "" {
		t.Error("expected last failure time")
	}

	cb.Reset()
	expectState(t, cb, StateClosed)
	if !cb.Allow() {
		t.Error("reset circuit should allow")
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newManualClock()
	var seen []State
	cb := New(Config{
		Name:          "ses",
		MaxFailures:   1,
		Now:           clock.Now,
		OnStateChange: func(_ string, s State) { seen = append(seen, s) },
	}, zap.NewNop())

	trip(cb, 1)
	clock.Advance(time.Minute)
	cb.Allow()
	cb.RecordSuccess()

	want := []State{StateClosed, StateOpen, StateHalfOpen, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

type mockTransport struct {
	err   error
	calls int
}

func (m *mockTransport) Name() string { return "mock" }

func (m *mockTransport) Deliver(context.Context, mail.Envelope) error {
	m.calls++
	return m.err
}

func TestProtectedTransport_Lifecycle(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	mock := &mockTransport{}
	pt := Protect(mock, Config{MaxFailures: 3, RecoveryTimeout: 30 * time.Second, Now: clock.Now}, zap.NewNop())
	env := mail.Envelope{To: "ana@example.com"}

	if pt.Name() != "mock" {
		t.Errorf("expected name mock, got %q", pt.Name())
	}
	if err := pt.Deliver(ctx, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.err = errors.New("provider down")
	for i := 0; i < 3; i++ {
		if err := pt.Deliver(ctx, env); err == nil {
			t.Errorf("delivery %d should fail", i)
		}
	}
	expectState(t, pt.Breaker(), StateOpen)

	mock.calls = 0
	if err := pt.Deliver(ctx, env); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("transport should not be called while open, got %d calls", mock.calls)
	}

	clock.Advance(time.Minute)
	mock.err = nil
	if err := pt.Deliver(ctx, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectState(t, pt.Breaker(), StateClosed)
}

func TestProtectedTransport_CancelDoesNotTrip(t *testing.T) {
	mock := &mockTransport{err: context.Canceled}
	pt := Protect(mock, Config{MaxFailures: 1}, zap.NewNop())

	if err := pt.Deliver(context.Background(), mail.Envelope{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	expectState(t, pt.Breaker(), StateClosed)
}
