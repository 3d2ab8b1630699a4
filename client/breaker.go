package client

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/metrics"
	"github.com/saiset-co/sai-request/types"
)

type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
	BreakerDisabled
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	case BreakerDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards the transport against a backend that keeps failing
// at the network level. Application errors never count as failures.
type CircuitBreaker struct {
	config    types.CircuitBreakerConfig
	logger    types.Logger
	clock     types.Clock
	gauge     types.Gauge
	state     atomic.Value
	failures  atomic.Int32
	successes atomic.Int32
	lastFail  atomic.Int64
	mutex     sync.Mutex
}

func NewCircuitBreaker(config *types.CircuitBreakerConfig, logger types.Logger, clock types.Clock, recorder types.MetricsManager) *CircuitBreaker {
	if clock == nil {
		clock = types.SystemClock{}
	}

	cb := &CircuitBreaker{
		logger: logger,
		clock:  clock,
	}

	if recorder != nil {
		cb.gauge = recorder.Gauge(metrics.BreakerState, nil)
	}

	if config == nil || !config.Enabled {
		cb.state.Store(BreakerDisabled)
		return cb
	}

	cb.config = *config
	if cb.config.FailureThreshold <= 0 {
		cb.config.FailureThreshold = 5
	}
	if cb.config.HalfOpenRequests <= 0 {
		cb.config.HalfOpenRequests = 1
	}
	if cb.config.RecoveryTimeout <= 0 {
		cb.config.RecoveryTimeout = 30 * time.Second
	}

	cb.setState(BreakerClosed)

	return cb
}

func (cb *CircuitBreaker) CanExecute() bool {
	if cb == nil {
		return true
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.getState() {
	case BreakerOpen:
		if cb.clock.Now().Sub(time.Unix(0, cb.lastFail.Load())) >= cb.config.RecoveryTimeout {
			cb.transitionTo(BreakerHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.getState() {
	case BreakerClosed:
		cb.failures.Store(0)
	case BreakerHalfOpen:
		successes := cb.successes.Add(1)
		cb.logger.Debug("Success recorded in half-open state",
			zap.Int32("successes", successes),
			zap.Int("required", cb.config.HalfOpenRequests))

		if successes >= int32(cb.config.HalfOpenRequests) {
			cb.transitionTo(BreakerClosed)
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.getState()
	if state == BreakerDisabled {
		return
	}

	cb.lastFail.Store(cb.clock.Now().UnixNano())

	switch state {
	case BreakerClosed:
		failures := cb.failures.Add(1)
		cb.logger.Debug("Failure recorded in closed state",
			zap.Int32("failures", failures),
			zap.Int("threshold", cb.config.FailureThreshold))

		if failures >= int32(cb.config.FailureThreshold) {
			cb.transitionTo(BreakerOpen)
		}
	case BreakerHalfOpen:
		cb.transitionTo(BreakerOpen)
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	if cb == nil {
		return BreakerDisabled
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.getState()
}

func (cb *CircuitBreaker) Reset() {
	if cb == nil {
		return
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	old := cb.getState()
	if old == BreakerDisabled {
		return
	}

	cb.transitionTo(BreakerClosed)

	cb.logger.Info("Circuit breaker manually reset",
		zap.String("old_state", old.String()))
}

func (cb *CircuitBreaker) getState() BreakerState {
	state := cb.state.Load()
	if state == nil {
		return BreakerClosed
	}
	return state.(BreakerState)
}

func (cb *CircuitBreaker) setState(state BreakerState) {
	cb.state.Store(state)
	if cb.gauge != nil {
		cb.gauge.Set(float64(state))
	}
}

func (cb *CircuitBreaker) transitionTo(to BreakerState) {
	from := cb.getState()
	if from == to {
		return
	}

	cb.setState(to)
	cb.successes.Store(0)

	switch to {
	case BreakerClosed:
		cb.failures.Store(0)
		cb.lastFail.Store(0)
		cb.logger.Info("Circuit breaker closed")
	case BreakerOpen:
		cb.logger.Warn("Circuit breaker opened",
			zap.Int32("failures", cb.failures.Load()),
			zap.Int("threshold", cb.config.FailureThreshold))
	case BreakerHalfOpen:
		cb.logger.Info("Circuit breaker transitioned to half-open")
	}
}

// IsBreakerFailure reports HTTP statuses that signal an overloaded or
// unreachable backend.
func IsBreakerFailure(statusCode int) bool {
	switch statusCode {
	case 408, 429, 502, 503, 504:
		return true
	default:
		return false
	}
}
