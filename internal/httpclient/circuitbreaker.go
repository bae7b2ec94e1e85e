package httpclient

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal state where requests are allowed.
	CircuitClosed CircuitState = iota
	// CircuitOpen is the state where requests fail fast.
	CircuitOpen
	// CircuitHalfOpen lets a limited number of probe requests through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	DefaultFailureThreshold    = 5
	DefaultRecoveryTimeout     = 30 * time.Second
	DefaultHalfOpenMaxRequests = 1
)

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing.
	RecoveryTimeout time.Duration
	// HalfOpenMaxRequests is the number of probes allowed while half-open.
	HalfOpenMaxRequests int
	// IsTransientError filters which failures count. Nil counts all of them.
	IsTransientError func(error) bool
}

// DefaultCircuitBreakerConfig returns the defaults, counting only transient errors.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    DefaultFailureThreshold,
		RecoveryTimeout:     DefaultRecoveryTimeout,
		HalfOpenMaxRequests: DefaultHalfOpenMaxRequests,
		IsTransientError:    IsTransient,
	}
}

// hostCircuit is the breaker state of one host.
type hostCircuit struct {
	state    CircuitState
	failures int
	since    time.Time
	probes   int
}

// CircuitBreaker tracks consecutive failures per host and fails fast once
// a host looks down, so a dead shortener does not stall every delivery.
type CircuitBreaker struct {
	mu       sync.Mutex
	circuits map[string]*hostCircuit
	config   CircuitBreakerConfig
	now      func() time.Time

	// onChange, when set, observes every state change. Called with mu held.
	onChange func(host string, from, to CircuitState)
}

// NewCircuitBreaker creates a circuit breaker with the given configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
	}
	return &CircuitBreaker{
		circuits: make(map[string]*hostCircuit),
		config:   cfg,
		now:      time.Now,
	}
}

// Allow returns nil if a request to host may proceed, ErrCircuitOpen otherwise.
// The first call after the recovery timeout moves the circuit to half-open
// and counts as a probe.
func (cb *CircuitBreaker) Allow(host string) error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(host)
	if c.state == CircuitOpen {
		if cb.now().Sub(c.since) < cb.config.RecoveryTimeout {
			return ErrCircuitOpen
		}
		cb.transition(host, c, CircuitHalfOpen)
	}
	if c.state == CircuitHalfOpen {
		if c.probes >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		c.probes++
	}
	return nil
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(host string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(host)
	c.failures = 0
	if c.state != CircuitClosed {
		cb.transition(host, c, CircuitClosed)
	}
}

// RecordFailure counts a failure that passes IsTransientError. Reaching the
// threshold, or any counted failure while half-open, opens the circuit.
func (cb *CircuitBreaker) RecordFailure(host string, err error) {
	if cb == nil {
		return
	}
	if f := cb.config.IsTransientError; f != nil && !f(err) {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(host)
	c.failures++
	if c.state == CircuitHalfOpen || (c.state == CircuitClosed && c.failures >= cb.config.FailureThreshold) {
		cb.transition(host, c, CircuitOpen)
	}
}

// State returns the current state for host, reporting an open circuit whose
// recovery timeout has passed as half-open.
func (cb *CircuitBreaker) State(host string) CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c, ok := cb.circuits[host]
	switch {
	case !ok:
		return CircuitClosed
	case c.state == CircuitOpen && cb.now().Sub(c.since) >= cb.config.RecoveryTimeout:
		return CircuitHalfOpen
	}
	return c.state
}

// Reset forgets the state for host.
func (cb *CircuitBreaker) Reset(host string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	delete(cb.circuits, host)
	cb.mu.Unlock()
}

// circuit must be called with mu held.
func (cb *CircuitBreaker) circuit(host string) *hostCircuit {
	c := cb.circuits[host]
	if c == nil {
		c = &hostCircuit{since: cb.now()}
		cb.circuits[host] = c
	}
	return c
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(host string, c *hostCircuit, to CircuitState) {
	from := c.state
	c.state = to
	c.since = cb.now()
	c.probes = 0
	if cb.onChange != nil && from != to {
		cb.onChange(host, from, to)
	}
}
