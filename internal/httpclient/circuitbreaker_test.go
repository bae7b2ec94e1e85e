package httpclient

import (
	"errors"
	"testing"
	"time"
)

type stepClock struct{ t time.Time }

func newStepClock() *stepClock { return &stepClock{t: time.Unix(1700000000, 0)} }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func breakerWith(cfg CircuitBreakerConfig, clk *stepClock) *CircuitBreaker {
	cb := NewCircuitBreaker(cfg)
	cb.now = clk.now
	return cb
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})
	boom := errors.New("boom")

	cb.RecordFailure("tinyurl.com", boom)
	cb.RecordFailure("tinyurl.com", boom)
	if got := cb.State("tinyurl.com"); got != CircuitClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	cb.RecordFailure("tinyurl.com", boom)
	if got := cb.State("tinyurl.com"); got != CircuitOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}
	if err := cb.Allow("tinyurl.com"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
	if err := cb.Allow("other.example"); err != nil {
		t.Errorf("other host Allow() = %v, want nil", err)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute})
	boom := errors.New("boom")

	cb.RecordFailure("h", boom)
	cb.RecordSuccess("h")
	cb.RecordFailure("h", boom)
	if got := cb.State("h"); got != CircuitClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clk := newStepClock()
	cb := breakerWith(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Second}, clk)
	boom := errors.New("boom")

	cb.RecordFailure("h", boom)
	if err := cb.Allow("h"); err == nil {
		t.Fatal("expected open circuit to reject")
	}

	clk.advance(11 * time.Second)
	if got := cb.State("h"); got != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", got)
	}
	if err := cb.Allow("h"); err != nil {
		t.Fatalf("probe Allow() = %v", err)
	}
	if err := cb.Allow("h"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe Allow() = %v, want ErrCircuitOpen", err)
	}

	cb.RecordSuccess("h")
	if got := cb.State("h"); got != CircuitClosed {
		t.Errorf("state after probe success = %v, want closed", got)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := newStepClock()
	cb := breakerWith(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Second}, clk)
	boom := errors.New("boom")

	cb.RecordFailure("h", boom)
	clk.advance(11 * time.Second)
	if err := cb.Allow("h"); err != nil {
		t.Fatalf("probe Allow() = %v", err)
	}
	cb.RecordFailure("h", boom)
	if got := cb.State("h"); got != CircuitOpen {
		t.Errorf("state = %v, want open", got)
	}
}

func TestCircuitBreaker_IgnoresPermanentErrors(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 1
	cb := NewCircuitBreaker(cfg)

	cb.RecordFailure("h", &HTTPError{StatusCode: 400})
	if got := cb.State("h"); got != CircuitClosed {
		t.Errorf("400 opened the circuit: state = %v", got)
	}
	cb.RecordFailure("h", &HTTPError{StatusCode: 502})
	if got := cb.State("h"); got != CircuitOpen {
		t.Errorf("502 did not open the circuit: state = %v", got)
	}
}

func TestCircuitBreaker_NilSafe(t *testing.T) {
	var cb *CircuitBreaker
	if err := cb.Allow("h"); err != nil {
		t.Errorf("nil Allow() = %v", err)
	}
	cb.RecordFailure("h", errors.New("x"))
	cb.RecordSuccess("h")
	cb.Reset("h")
	if cb.State("h") != CircuitClosed {
		t.Error("nil breaker should report closed")
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}

func TestCircuitBreaker_ReportsTransitions(t *testing.T) {
	clk := newStepClock()
	cb := breakerWith(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Second}, clk)
	var got []string
	cb.onChange = func(host string, from, to CircuitState) {
		got = append(got, host+":"+from.String()+"->"+to.String())
	}

	cb.RecordFailure("h", errors.New("boom"))
	clk.advance(2 * time.Second)
	_ = cb.Allow("h")
	cb.RecordSuccess("h")
	cb.RecordSuccess("h")

	want := []string{"h:closed->open", "h:open->half-open", "h:half-open->closed"}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, got[i], want[i])
		}
	}
}
