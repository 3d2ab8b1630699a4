package client

import (
	"context"

	"github.com/saiset-co/sai-request/types"
)

// Collaborators are the host-provided sinks the client reports to.
type Collaborators struct {
	Notifier  types.Notifier
	Navigator types.Navigator
	Loading   types.LoadingIndicator
}

// NewManager assembles a Client from configuration: a circuit breaker, the
// fasthttp transport and the pipeline over the given cache and storage.
func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager, cache types.CacheManager, storage types.StorageManager, collaborators Collaborators) (*Client, error) {
	if config == nil || config.GetConfig() == nil {
		return nil, types.ErrConfigIsNil
	}

	clientConfig := config.GetConfig().Client
	if clientConfig == nil {
		return nil, types.Errorf(types.ErrConfigIsNil, "client section missing")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	breaker := NewCircuitBreaker(clientConfig.CircuitBreaker, logger, types.SystemClock{}, metrics)
	transport := NewFastHTTPTransport(logger, clientConfig, breaker)

	return NewClient(logger, clientConfig, Dependencies{
		Logger:    logger,
		Metrics:   metrics,
		Transport: transport,
		Cache:     cache,
		Storage:   storage,
		Notifier:  collaborators.Notifier,
		Navigator: collaborators.Navigator,
		Loading:   collaborators.Loading,
	}), nil
}
