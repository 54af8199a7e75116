package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the recovery timeout has passed.
	CircuitOpen
	// CircuitHalfOpen lets a single probe through.
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

// ErrCircuitOpen is returned without calling the provider while the breaker is open.
var ErrCircuitOpen = fmt.Errorf("ai circuit open: %w", domain.ErrUpstreamTimeout)

// CircuitBreaker opens after consecutive provider failures so that callers
// degrade to their fallbacks immediately instead of waiting on timeouts.
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	state            CircuitState
	failures         int
	openedAt         time.Time
	probing          bool
	now              func() time.Time
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive failures.
func NewCircuitBreaker(name string, threshold int, recovery time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if recovery <= 0 {
		recovery = 30 * time.Second
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: threshold,
		recoveryTimeout:  recovery,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. After the recovery timeout the
// breaker moves to half-open and admits exactly one probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.recoveryTimeout {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.probing = true
		slog.Info("ai circuit half-open", slog.String("breaker", cb.name))
		return true
	default:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
}

// Record feeds the outcome of a call back into the breaker. Caller mistakes
// (invalid arguments, cancelled contexts) do not count as provider failures.
func (cb *CircuitBreaker) Record(err error) {
	if err != nil && !countsAsFailure(err) {
		err = nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err == nil {
		if cb.state != CircuitClosed {
			slog.Info("ai circuit closed", slog.String("breaker", cb.name))
		}
		cb.state = CircuitClosed
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.failureThreshold {
		if cb.state != CircuitOpen {
			slog.Warn("ai circuit opened",
				slog.String("breaker", cb.name),
				slog.Int("consecutive_failures", cb.failures),
				slog.Any("error", err))
		}
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func countsAsFailure(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, domain.ErrInvalidArgument):
		return false
	}
	return true
}

// guardedClient routes chat calls through a CircuitBreaker. Embeddings are
// guarded by the same breaker since they share the provider.
type guardedClient struct {
	base domain.AIClient
	cb   *CircuitBreaker
}

// WithCircuitBreaker wraps base so calls fail fast with ErrCircuitOpen while
// the provider is unhealthy.
func WithCircuitBreaker(base domain.AIClient, cb *CircuitBreaker) domain.AIClient {
	if base == nil || cb == nil {
		return base
	}
	return &guardedClient{base: base, cb: cb}
}

func (g *guardedClient) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if !g.cb.Allow() {
		return nil, ErrCircuitOpen
	}
	v, err := g.base.Embed(ctx, texts)
	g.cb.Record(err)
	return v, err
}

func (g *guardedClient) ChatJSON(ctx domain.Context, system, user string, opts domain.ChatOptions) (string, error) {
	if !g.cb.Allow() {
		return "", ErrCircuitOpen
	}
	out, err := g.base.ChatJSON(ctx, system, user, opts)
	g.cb.Record(err)
	return out, err
}

func (g *guardedClient) Chat(ctx domain.Context, system, user string, opts domain.ChatOptions) (string, error) {
	if !g.cb.Allow() {
		return "", ErrCircuitOpen
	}
	out, err := g.base.Chat(ctx, system, user, opts)
	g.cb.Record(err)
	return out, err
}
