package client

import (
	"context"
	"time"

	"github.com/saiset-co/sai-request/types"
)

// RetryState travels with a logical request across re-dispatches.
type RetryState struct {
	RetryCount        int
	CurrentRetryCount int
	Delay             time.Duration
}

type Retrier struct {
	defaultCount int
	defaultDelay time.Duration
}

func NewRetrier(defaultCount int, defaultDelay time.Duration) *Retrier {
	if defaultCount < 0 {
		defaultCount = 0
	}
	if defaultDelay <= 0 {
		defaultDelay = types.DefaultRetryDelay
	}

	return &Retrier{defaultCount: defaultCount, defaultDelay: defaultDelay}
}

// State resolves the per-request overrides against the defaults.
func (r *Retrier) State(opts types.RequestOptions) *RetryState {
	state := &RetryState{RetryCount: r.defaultCount, Delay: r.defaultDelay}

	if opts.RetryCount != nil {
		state.RetryCount = *opts.RetryCount
	}
	if opts.RetryDelay > 0 {
		state.Delay = opts.RetryDelay
	}

	return state
}

// ShouldRetry allows another attempt only for network failures while the
// attempt budget lasts.
func (r *Retrier) ShouldRetry(err error, state *RetryState) bool {
	if err == nil || state == nil {
		return false
	}

	reqErr, ok := types.AsRequestError(err)
	if !ok || reqErr.Kind != types.KindNetwork {
		return false
	}

	return state.CurrentRetryCount < state.RetryCount
}

// Wait sleeps for the retry delay. It returns the cancellation cause if ctx
// ends first.
func (r *Retrier) Wait(ctx context.Context, state *RetryState) error {
	timer := time.NewTimer(state.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
