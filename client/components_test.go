package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-request/logger"
	"github.com/saiset-co/sai-request/notify"
	"github.com/saiset-co/sai-request/storage"
	"github.com/saiset-co/sai-request/types"
)

func TestRegistryOnlyLiveTokenResolves(t *testing.T) {
	r := NewRegistry()

	ctx1, t1 := r.Register(context.Background(), "id")
	ctx2, t2 := r.Register(context.Background(), "id")

	require.Error(t, ctx1.Err())
	assert.ErrorIs(t, context.Cause(ctx1), types.ErrRequestSuperseded)
	assert.NoError(t, ctx2.Err())

	assert.False(t, r.Resolve("id", t1), "a stale token cannot deregister the newer handle")
	assert.True(t, r.Pending("id"))

	assert.True(t, r.Resolve("id", t2))
	assert.False(t, r.Pending("id"))
	assert.Equal(t, "id", t2.Identity())
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()

	ctxA, _ := r.Register(context.Background(), "a")
	ctxB, _ := r.Register(context.Background(), "b")

	assert.True(t, r.Cancel("a", types.ErrRequestCancelled))
	assert.False(t, r.Cancel("a", types.ErrRequestCancelled))
	assert.Error(t, ctxA.Err())
	assert.NoError(t, ctxB.Err())

	assert.Equal(t, 1, r.CancelAll("route change"))
	assert.ErrorIs(t, context.Cause(ctxB), types.ErrRequestCancelled)
	assert.Equal(t, 0, r.Len())
}

func TestRetrierState(t *testing.T) {
	r := NewRetrier(3, time.Second)

	state := r.State(types.RequestOptions{})
	assert.Equal(t, 3, state.RetryCount)
	assert.Equal(t, time.Second, state.Delay)

	state = r.State(types.RequestOptions{RetryCount: types.Int(0), RetryDelay: time.Millisecond})
	assert.Equal(t, 0, state.RetryCount)
	assert.Equal(t, time.Millisecond, state.Delay)

	netErr := types.NewNetworkError(0, "", errors.New("eof"))
	assert.False(t, r.ShouldRetry(netErr, state))

	state = &RetryState{RetryCount: 2}
	assert.True(t, r.ShouldRetry(netErr, state))
	state.CurrentRetryCount = 2
	assert.False(t, r.ShouldRetry(netErr, state))

	state.CurrentRetryCount = 0
	assert.False(t, r.ShouldRetry(types.NewCancelledError(nil), state))
	assert.False(t, r.ShouldRetry(types.NewApplicationError(500, ""), state))
	assert.False(t, r.ShouldRetry(errors.New("plain"), state))
}

func TestLoadingCoordinatorClampsAtZero(t *testing.T) {
	indicator := &fakeIndicator{}
	lc := NewLoadingCoordinator(indicator, nil)

	lc.End()
	lc.End()
	assert.Equal(t, 0, lc.Count())
	assert.False(t, lc.Visible())

	lc.Begin()
	lc.Begin()
	assert.True(t, lc.Visible())
	lc.End()
	lc.End()
	lc.End()

	assert.Equal(t, 0, lc.Count())
	shows, hides := indicator.counts()
	assert.Equal(t, 1, shows)
	assert.Equal(t, 1, hides)
}

func TestLoadingCoordinatorConcurrent(t *testing.T) {
	indicator := &fakeIndicator{}
	lc := NewLoadingCoordinator(indicator, nil)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lc.Begin()
			assert.GreaterOrEqual(t, lc.Count(), 0)
			lc.End()
			lc.End()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, lc.Count())
	shows, hides := indicator.counts()
	assert.Equal(t, shows, hides)
}

func TestClassifierTable(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
		want    string
	}{
		{"forbidden", types.CodeForbidden, "ignored", MessageForbidden},
		{"server error", types.CodeServerError, "ignored", MessageServerError},
		{"not found", types.CodeNotFound, "", MessageNotFound},
		{"bad request with message", types.CodeBadRequest, "name is required", "name is required"},
		{"bad request fallback", types.CodeBadRequest, "", MessageBadRequest},
		{"unknown with message", 418, "teapot", "teapot"},
		{"unknown fallback", 418, "", MessageRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notices := notify.NewRecorder()
			c := NewClassifier(ClassifierDeps{Logger: logger.NewNop(), Notifier: notices})

			assert.Equal(t, tt.want, c.Classify(tt.code, tt.message, types.ErrorModeMessage))

			got := notices.Notices()
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Text)
			assert.Equal(t, types.SeverityError, got[0].Severity)
		})
	}
}

func TestClassifierRegisterExtendsTable(t *testing.T) {
	notices := notify.NewRecorder()
	c := NewClassifier(ClassifierDeps{Logger: logger.NewNop(), Notifier: notices})

	var fired bool
	c.Register(429, Rule{
		Severity: types.SeverityWarning,
		Fallback: "Too many requests",
		Effect:   func(*Classifier) { fired = true },
	})

	c.Classify(429, "slow down", types.ErrorModeMessage)

	got := notices.Notices()
	require.Len(t, got, 1)
	assert.Equal(t, "Too many requests", got[0].Text)
	assert.Equal(t, types.SeverityWarning, got[0].Severity)
	assert.True(t, fired)
}

func TestClassifierStopDropsPendingRedirect(t *testing.T) {
	store := storage.NewMemoryStore(logger.NewNop())
	require.NoError(t, store.Set(types.TokenKey, "abc"))
	nav := &fakeNavigator{current: "/settings"}

	c := NewClassifier(ClassifierDeps{
		Logger:        logger.NewNop(),
		Storage:       store,
		Navigator:     nav,
		RedirectDelay: 50 * time.Millisecond,
	})

	c.Classify(types.CodeUnauthorized, "", types.ErrorModeMessage)
	c.Stop()

	_, present := store.Get(types.TokenKey)
	assert.False(t, present)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, nav.Redirects())
}

func TestClassifyErrorCancelledIsSilent(t *testing.T) {
	notices := notify.NewRecorder()
	c := NewClassifier(ClassifierDeps{Notifier: notices})

	c.ClassifyError(types.NewCancelledError(types.ErrRequestSuperseded), types.ErrorModeMessage)
	assert.Equal(t, 0, notices.Len())

	c.ClassifyError(types.NewNetworkError(0, "", nil), types.ErrorModeNone)
	assert.Equal(t, 0, notices.Len())

	c.ClassifyError(types.NewNetworkError(0, "", nil), types.ErrorModeMessage)
	assert.Equal(t, 1, notices.Len())
	assert.Equal(t, MessageNetworkError, notices.Notices()[0].Text)
}

func TestClassifyErrorUsesStatusWhenServerAnswered(t *testing.T) {
	notices := notify.NewRecorder()
	c := NewClassifier(ClassifierDeps{Notifier: notices})

	c.ClassifyError(types.NewNetworkError(502, "", nil), types.ErrorModeMessage)
	c.ClassifyError(types.NewNetworkError(429, "slow down", nil), types.ErrorModeMessage)

	got := notices.Notices()
	require.Len(t, got, 2)
	assert.Equal(t, MessageRequestFailed, got[0].Text)
	assert.Equal(t, "slow down", got[1].Text)
}

func TestCircuitBreakerTransitions(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(&types.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		HalfOpenRequests: 1,
	}, logger.NewNop(), clock, nil)

	assert.Equal(t, BreakerClosed, cb.State())

	cb.RecordFailure()
	assert.True(t, cb.CanExecute())
	cb.RecordFailure()
	assert.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.CanExecute())

	clock.Advance(time.Minute)
	assert.True(t, cb.CanExecute())
	assert.Equal(t, BreakerHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, BreakerOpen, cb.State())

	clock.Advance(time.Minute)
	require.True(t, cb.CanExecute())
	cb.RecordSuccess()
	assert.Equal(t, BreakerClosed, cb.State())

	cb.RecordFailure()
	cb.Reset()
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cb := NewCircuitBreaker(nil, logger.NewNop(), nil, nil)
	for i := 0; i < 10; i++ {
		cb.RecordFailure()
	}
	assert.True(t, cb.CanExecute())
	assert.Equal(t, "disabled", cb.State().String())

	var nilBreaker *CircuitBreaker
	assert.True(t, nilBreaker.CanExecute())
	nilBreaker.RecordFailure()
}
