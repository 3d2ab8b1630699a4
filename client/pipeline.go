package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/logger"
	"github.com/saiset-co/sai-request/metrics"
	"github.com/saiset-co/sai-request/types"
)

type RequestInterceptor func(ctx context.Context, desc *types.RequestDescriptor) error

type ResponseInterceptor func(ctx context.Context, desc *types.RequestDescriptor, envelope *types.Envelope) error

// Dependencies are the collaborators of a Pipeline. Cache, Storage,
// Notifier, Navigator and Loading may be nil.
type Dependencies struct {
	Logger    types.Logger
	Metrics   types.MetricsManager
	Transport Transport
	Cache     types.CacheManager
	Storage   types.StorageManager
	Notifier  types.Notifier
	Navigator types.Navigator
	Loading   types.LoadingIndicator
}

// Pipeline owns the shared request state: the in-flight registry, the
// loading counter and the response cache handle.
type Pipeline struct {
	logger     types.Logger
	metrics    types.MetricsManager
	transport  Transport
	cache      types.CacheManager
	storage    types.StorageManager
	registry   *Registry
	retrier    *Retrier
	loading    *LoadingCoordinator
	classifier *Classifier

	timeout    time.Duration
	cacheTime  time.Duration
	clientInfo string

	// mu makes the cache check and the in-flight registration one step.
	mu sync.Mutex

	interceptorsMu       sync.RWMutex
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

func NewPipeline(config *types.ClientConfig, deps Dependencies) *Pipeline {
	if config == nil {
		config = &types.ClientConfig{
			Timeout:    types.DefaultTimeout,
			RetryCount: types.DefaultRetryCount,
			RetryDelay: types.DefaultRetryDelay,
			CacheTime:  types.DefaultCacheTime,
		}
	}

	p := &Pipeline{
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		transport:  deps.Transport,
		cache:      deps.Cache,
		storage:    deps.Storage,
		registry:   NewRegistry(),
		retrier:    NewRetrier(config.RetryCount, config.RetryDelay),
		loading:    NewLoadingCoordinator(deps.Loading, deps.Metrics),
		timeout:    config.Timeout,
		cacheTime:  config.CacheTime,
		clientInfo: config.ClientInfo,
		classifier: NewClassifier(ClassifierDeps{
			Logger:        deps.Logger,
			Notifier:      deps.Notifier,
			Storage:       deps.Storage,
			Navigator:     deps.Navigator,
			RedirectDelay: config.UnauthorizedRedirectDelay,
		}),
	}

	if p.timeout <= 0 {
		p.timeout = types.DefaultTimeout
	}
	if p.cacheTime <= 0 {
		p.cacheTime = types.DefaultCacheTime
	}

	return p
}

func (p *Pipeline) UseRequest(interceptor RequestInterceptor) {
	p.interceptorsMu.Lock()
	defer p.interceptorsMu.Unlock()
	p.requestInterceptors = append(p.requestInterceptors, interceptor)
}

func (p *Pipeline) UseResponse(interceptor ResponseInterceptor) {
	p.interceptorsMu.Lock()
	defer p.interceptorsMu.Unlock()
	p.responseInterceptors = append(p.responseInterceptors, interceptor)
}

func (p *Pipeline) Registry() *Registry {
	return p.registry
}

func (p *Pipeline) Loading() *LoadingCoordinator {
	return p.loading
}

func (p *Pipeline) Classifier() *Classifier {
	return p.classifier
}

// CancelAll aborts every pending request. Their callers settle as cancelled.
func (p *Pipeline) CancelAll(reason string) int {
	count := p.registry.CancelAll(reason)
	if count > 0 {
		p.logger.Debug("API cancel", zap.String("reason", reason), zap.Int("count", count))
	}
	return count
}

// Do runs one logical request to completion. The caller's descriptor is
// never mutated.
func (p *Pipeline) Do(ctx context.Context, desc *types.RequestDescriptor) *types.Result {
	start := time.Now()
	method := strings.ToUpper(desc.Method)

	result := p.dispatch(ctx, desc)

	p.counter(metrics.RequestsTotal, map[string]string{
		"method":  method,
		"outcome": result.Outcome.String(),
	}).Inc()
	if p.metrics != nil {
		p.metrics.Histogram(metrics.RequestDuration, nil, map[string]string{"method": method}).ObserveDuration(start)
	}

	if result.Outcome == types.OutcomeFailed && !errors.Is(result.Err, types.ErrInterceptorRejected) {
		if _, ok := types.AsRequestError(result.Err); ok {
			p.classifier.ClassifyError(result.Err, desc.Options.ErrorMessageMode)
		}
	}

	return result
}

func (p *Pipeline) dispatch(ctx context.Context, desc *types.RequestDescriptor) *types.Result {
	d := cloneDescriptor(desc)
	d.Method = strings.ToUpper(d.Method)
	if d.Options.Timeout <= 0 {
		d.Options.Timeout = p.timeout
	}

	if !d.Options.SkipHeaders {
		p.attachHeaders(d)
	}

	for _, interceptor := range p.requestChain() {
		if err := interceptor(ctx, d); err != nil {
			return &types.Result{
				Outcome: types.OutcomeFailed,
				Err:     fmt.Errorf("%w: %w", types.ErrInterceptorRejected, err),
			}
		}
	}

	if !d.Options.SkipTransform {
		d = Normalize(d)
	}

	identity := DeriveIdentity(d)

	p.mu.Lock()
	if d.Options.EnableCache && p.cache != nil {
		if payload, ok := p.cache.Get(identity); ok {
			p.mu.Unlock()
			p.counter(metrics.CacheLookupsTotal, map[string]string{"result": "hit"}).Inc()
			p.logger.Debug("API response", logger.With(logger.Request(d), []zap.Field{logger.Identity(identity), zap.Bool("from_cache", true)})...)
			return &types.Result{Outcome: types.OutcomeSuccess, Data: payload, FromCache: true}
		}
		p.counter(metrics.CacheLookupsTotal, map[string]string{"result": "miss"}).Inc()
	}
	reqCtx, token := p.registry.Register(ctx, identity)
	p.mu.Unlock()

	state := p.retrier.State(d.Options)

	for {
		envelope, err := p.attempt(reqCtx, d)
		if err == nil {
			return p.settle(reqCtx, d, identity, token, envelope, nil)
		}

		if types.IsCancelled(err) || reqCtx.Err() != nil || !p.retrier.ShouldRetry(err, state) {
			return p.settle(reqCtx, d, identity, token, nil, err)
		}

		state.CurrentRetryCount++
		p.counter(metrics.RetriesTotal, nil).Inc()
		p.logger.Debug("API retry", logger.With(
			logger.Request(d),
			logger.Attempt(state.CurrentRetryCount, state.RetryCount),
			logger.Failure(err))...)

		if waitErr := p.retrier.Wait(reqCtx, state); waitErr != nil {
			return p.settle(reqCtx, d, identity, token, nil, types.NewCancelledError(waitErr))
		}
	}
}

func (p *Pipeline) attempt(ctx context.Context, d *types.RequestDescriptor) (*types.Envelope, error) {
	if d.Options.ShowLoading {
		p.loading.Begin()
		defer p.loading.End()
	}

	p.logger.Debug("API request", append(logger.Request(d), zap.Any("query", d.Query))...)

	envelope, err := p.transport.Issue(ctx, d)
	if err != nil {
		if _, ok := types.AsRequestError(err); !ok {
			err = types.NewNetworkError(0, "", err)
		}
		return nil, err
	}

	for _, interceptor := range p.responseChain() {
		if err = interceptor(ctx, d, envelope); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrInterceptorRejected, err)
		}
	}

	p.logger.Debug("API response", append(logger.Request(d), zap.Int("code", envelope.Code))...)

	if !d.Options.RawResponse && envelope.Code != types.CodeSuccess {
		return nil, types.NewApplicationError(envelope.Code, envelope.Message)
	}

	return envelope, nil
}

// settle deregisters the request and decides its outcome. A request whose
// registration was superseded or cancelled settles as cancelled and leaves
// the cache alone.
func (p *Pipeline) settle(ctx context.Context, d *types.RequestDescriptor, identity string, token *Token, envelope *types.Envelope, err error) *types.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	cause := context.Cause(ctx)
	live := p.registry.Resolve(identity, token)

	if !live || cause != nil || types.IsCancelled(err) {
		if err == nil || !types.IsCancelled(err) {
			err = types.NewCancelledError(cause)
		}
		p.counter(metrics.CancellationsTotal, nil).Inc()
		p.logger.Debug("API cancel", append(logger.Request(d), zap.NamedError("cause", cause))...)
		return &types.Result{Outcome: types.OutcomeCancelled, Err: err}
	}

	if err != nil {
		return &types.Result{Outcome: types.OutcomeFailed, Err: err}
	}

	data := []byte(envelope.Data)

	if d.Options.EnableCache && p.cache != nil {
		ttl := d.Options.CacheTime
		if ttl <= 0 {
			ttl = p.cacheTime
		}
		if cacheErr := p.cache.Set(identity, data, ttl); cacheErr != nil {
			p.logger.Warn("Failed to cache response",
				logger.Identity(identity),
				zap.Error(cacheErr))
		}
	}

	return &types.Result{Outcome: types.OutcomeSuccess, Data: data}
}

func (p *Pipeline) attachHeaders(d *types.RequestDescriptor) {
	if d.Options.Headers == nil {
		d.Options.Headers = make(map[string]string, 3)
	}

	if p.storage != nil {
		if token, ok := p.storage.Get(types.TokenKey); ok && token != "" {
			d.Options.Headers["Authorization"] = "Bearer " + token
		}
	}

	if p.clientInfo != "" {
		d.Options.Headers["X-Client-Info"] = p.clientInfo
	}

	d.Options.Headers["X-Request-ID"] = uuid.NewString()
}

func (p *Pipeline) requestChain() []RequestInterceptor {
	p.interceptorsMu.RLock()
	defer p.interceptorsMu.RUnlock()
	return append([]RequestInterceptor(nil), p.requestInterceptors...)
}

func (p *Pipeline) responseChain() []ResponseInterceptor {
	p.interceptorsMu.RLock()
	defer p.interceptorsMu.RUnlock()
	return append([]ResponseInterceptor(nil), p.responseInterceptors...)
}

func (p *Pipeline) counter(name string, labels map[string]string) types.Counter {
	if p.metrics == nil {
		return noopCounter{}
	}
	return p.metrics.Counter(name, labels)
}

type noopCounter struct{}

func (noopCounter) Inc()         {}
func (noopCounter) Add(float64)  {}
func (noopCounter) Get() float64 { return 0 }
