package client

import (
	"context"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
	"github.com/saiset-co/sai-request/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// Client is the caller-facing request API over a Pipeline.
type Client struct {
	logger    types.Logger
	pipeline  *Pipeline
	transport Transport
	state     atomic.Value
}

func NewClient(logger types.Logger, config *types.ClientConfig, deps Dependencies) *Client {
	if deps.Logger == nil {
		deps.Logger = logger
	}

	c := &Client{
		logger:    logger,
		pipeline:  NewPipeline(config, deps),
		transport: deps.Transport,
	}
	c.setState(StateStopped)

	return c
}

func (c *Client) Start() error {
	if !c.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	c.setState(StateRunning)
	c.logger.Info("Request client started")

	return nil
}

func (c *Client) Stop() error {
	if !c.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer c.setState(StateStopped)

	cancelled := c.pipeline.CancelAll("client stopped")
	c.pipeline.Classifier().Stop()

	if closer, ok := c.transport.(interface{ Close() }); ok {
		closer.Close()
	}

	c.logger.Info("Request client stopped", zap.Int("cancelled", cancelled))

	return nil
}

func (c *Client) IsRunning() bool {
	return c.getState() == StateRunning
}

func (c *Client) Pipeline() *Pipeline {
	return c.pipeline
}

func (c *Client) UseRequest(interceptor RequestInterceptor) {
	c.pipeline.UseRequest(interceptor)
}

func (c *Client) UseResponse(interceptor ResponseInterceptor) {
	c.pipeline.UseResponse(interceptor)
}

func (c *Client) CancelAll(reason string) int {
	return c.pipeline.CancelAll(reason)
}

func (c *Client) Do(ctx context.Context, desc *types.RequestDescriptor) *types.Result {
	if !c.IsRunning() {
		return &types.Result{Outcome: types.OutcomeFailed, Err: types.ErrClientNotRunning}
	}
	return c.pipeline.Do(ctx, desc)
}

func (c *Client) Get(ctx context.Context, url string, query map[string]interface{}, opts ...Option) *types.Result {
	return c.Do(ctx, &types.RequestDescriptor{Method: http.MethodGet, URL: url, Query: query, Options: applyOptions(opts)})
}

func (c *Client) Post(ctx context.Context, url string, body interface{}, opts ...Option) *types.Result {
	return c.Do(ctx, &types.RequestDescriptor{Method: http.MethodPost, URL: url, Body: body, Options: applyOptions(opts)})
}

func (c *Client) Put(ctx context.Context, url string, body interface{}, opts ...Option) *types.Result {
	return c.Do(ctx, &types.RequestDescriptor{Method: http.MethodPut, URL: url, Body: body, Options: applyOptions(opts)})
}

func (c *Client) Delete(ctx context.Context, url string, query map[string]interface{}, opts ...Option) *types.Result {
	return c.Do(ctx, &types.RequestDescriptor{Method: http.MethodDelete, URL: url, Query: query, Options: applyOptions(opts)})
}

// UploadFile posts a multipart body. Multipart bodies are never normalized.
func (c *Client) UploadFile(ctx context.Context, url string, upload *types.Multipart, opts ...Option) *types.Result {
	options := applyOptions(opts)
	options.SkipTransform = true
	return c.Do(ctx, &types.RequestDescriptor{Method: http.MethodPost, URL: url, Body: upload, Options: options})
}

// DownloadFile fetches a raw body with no envelope decoding.
func (c *Client) DownloadFile(ctx context.Context, url string, query map[string]interface{}, opts ...Option) ([]byte, error) {
	options := applyOptions(opts)
	options.RawResponse = true

	result := c.Do(ctx, &types.RequestDescriptor{Method: http.MethodGet, URL: url, Query: query, Options: options})
	if !result.OK() {
		return nil, result.Err
	}
	return result.Data, nil
}

// Decode unmarshals the data of a successful result into T.
func Decode[T any](result *types.Result) (*T, error) {
	if result == nil {
		return nil, types.ErrClientResponseInvalid
	}
	if !result.OK() {
		return nil, result.Err
	}

	var out T
	if len(result.Data) == 0 || string(result.Data) == "null" {
		return &out, nil
	}
	if err := utils.Unmarshal(result.Data, &out); err != nil {
		return nil, types.WrapError(types.ErrClientResponseInvalid, err.Error())
	}

	return &out, nil
}

func (c *Client) getState() State {
	return c.state.Load().(State)
}

func (c *Client) setState(state State) {
	c.state.Store(state)
}

func (c *Client) transitionState(from, to State) bool {
	return c.state.CompareAndSwap(from, to)
}
