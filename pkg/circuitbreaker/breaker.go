package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config tunes when the breaker trips and how it recovers. Zero values fall
// back to conservative defaults suitable for external model providers.
type Config struct {
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
	Logger           *zap.Logger
}

type CircuitBreaker struct {
	name             string
	timeout          time.Duration
	failureThreshold uint32
	successThreshold uint32
	logger           *zap.Logger

	mu                   sync.Mutex
	state                State
	consecutiveFailures  uint32
	consecutiveSuccesses uint32
	openedAt             time.Time
}

func New(name string, cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		timeout:          cfg.Timeout,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		logger:           cfg.Logger,
	}

	if cb.timeout == 0 {
		cb.timeout = 60 * time.Second
	}
	if cb.failureThreshold == 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold == 0 {
		cb.successThreshold = 2
	}
	if cb.logger == nil {
		cb.logger = zap.NewNop()
	}

	return cb
}

// Execute runs fn unless the breaker is open. The context is accepted for
// signature symmetry with the wrapped provider calls; an open breaker fails
// fast without consulting it.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err == nil)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.timeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		cb.consecutiveSuccesses++
		cb.consecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.consecutiveSuccesses >= cb.successThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.consecutiveFailures++
	cb.consecutiveSuccesses = 0

	if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.failureThreshold {
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.consecutiveSuccesses = 0

	if state == StateOpen {
		cb.openedAt = time.Now()
	}

	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
		zap.Uint32("failures", cb.consecutiveFailures),
	)
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.timeout {
		return StateHalfOpen
	}
	return cb.state
}
