package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker for an upstream rejects the call
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrUnavailable marks a failure that should count against the breaker and may be retried
var ErrUnavailable = errors.New("upstream unavailable")

// Config holds configuration for breakers and retries
type Config struct {
	// MaxRequests allowed through while half-open
	MaxRequests uint32
	// Interval after which closed-state counts are cleared
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// MaxRetries bounds attempts made by Retry
	MaxRetries uint
	// CallTimeout bounds a single upstream attempt
	CallTimeout time.Duration
}

// DefaultConfig returns default breaker configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		MaxRetries:       3,
		CallTimeout:      10 * time.Second,
	}
}

// State is a breaker state
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Status reports breaker counters for one upstream
type Status struct {
	Name         string `json:"name"`
	State        State  `json:"state"`
	Requests     uint32 `json:"requests"`
	TotalSuccess uint32 `json:"total_success"`
	TotalFailure uint32 `json:"total_failure"`
}

// Manager owns one circuit breaker per named upstream (payment processor, identity provider)
type Manager struct {
	breakers map[string]*gobreaker.CircuitBreaker
	config   *Config
	mu       sync.RWMutex
}

// NewManager creates a breaker manager
func NewManager(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   config,
	}
}

// breaker returns or creates the breaker for name
func (m *Manager) breaker(name string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()
	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, exists = m.breakers[name]; exists {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("upstream-%s", name),
		MaxRequests: m.config.MaxRequests,
		Interval:    m.config.Interval,
		Timeout:     m.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.config.FailureThreshold
		},
		OnStateChange: func(breakerName string, from gobreaker.State, to gobreaker.State) {
			log.Info().
				Str("circuit_breaker", breakerName).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state changed")
			monitoring.SetCircuitBreakerState(name, stateToGauge(to))
		},
		IsSuccessful: func(err error) bool {
			// Only availability failures trip the breaker; rejected requests do not.
			return err == nil || !(errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded))
		},
	})
	m.breakers[name] = cb
	return cb
}

// Execute runs fn under the breaker for name
func Execute[T any](ctx context.Context, m *Manager, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	cb := m.breaker(name)

	result, err := cb.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		callCtx := ctx
		if m.config.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, m.config.CallTimeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().Str("upstream", name).Msg("Circuit breaker is open, rejecting request")
			return zero, ErrCircuitOpen
		}
		return zero, err
	}
	v, _ := result.(T)
	return v, nil
}

// Retry runs fn under the breaker, retrying ErrUnavailable failures with exponential
// backoff. Only idempotent calls may be retried.
func Retry[T any](ctx context.Context, m *Manager, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	op := func() (T, error) {
		v, err := Execute(ctx, m, name, fn)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrUnavailable) {
			return v, err
		}
		return v, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	tries := m.config.MaxRetries
	if tries == 0 {
		tries = 1
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

// Status returns the status of the breaker for name, or nil if it was never used
func (m *Manager) Status(name string) *Status {
	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()
	if !exists {
		return nil
	}

	counts := cb.Counts()
	return &Status{
		Name:         name,
		State:        State(stateToString(cb.State())),
		Requests:     counts.Requests,
		TotalSuccess: counts.TotalSuccesses,
		TotalFailure: counts.TotalFailures,
	}
}

// AllStatus returns the status of every breaker
func (m *Manager) AllStatus() []*Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	m.mu.RUnlock()

	statuses := make([]*Status, 0, len(names))
	for _, name := range names {
		if s := m.Status(name); s != nil {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return string(StateClosed)
	case gobreaker.StateOpen:
		return string(StateOpen)
	case gobreaker.StateHalfOpen:
		return string(StateHalfOpen)
	default:
		return "unknown"
	}
}

func stateToGauge(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
