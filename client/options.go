package client

import (
	"time"

	"github.com/saiset-co/sai-request/types"
)

type Option func(*types.RequestOptions)

// WithCache opts the request into the response cache. A zero ttl uses the
// client default.
func WithCache(ttl time.Duration) Option {
	return func(o *types.RequestOptions) {
		o.EnableCache = true
		o.CacheTime = ttl
	}
}

func WithRetry(count int, delay time.Duration) Option {
	return func(o *types.RequestOptions) {
		o.RetryCount = types.Int(count)
		o.RetryDelay = delay
	}
}

func WithoutRetry() Option {
	return func(o *types.RequestOptions) {
		o.RetryCount = types.Int(0)
	}
}

func WithLoading() Option {
	return func(o *types.RequestOptions) {
		o.ShowLoading = true
	}
}

func WithoutTransform() Option {
	return func(o *types.RequestOptions) {
		o.SkipTransform = true
	}
}

func WithoutHeaders() Option {
	return func(o *types.RequestOptions) {
		o.SkipHeaders = true
	}
}

func WithHeaders(headers map[string]string) Option {
	return func(o *types.RequestOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *types.RequestOptions) {
		o.Timeout = timeout
	}
}

func WithErrorMode(mode types.ErrorMessageMode) Option {
	return func(o *types.RequestOptions) {
		o.ErrorMessageMode = mode
	}
}

func WithRawResponse() Option {
	return func(o *types.RequestOptions) {
		o.RawResponse = true
	}
}

func applyOptions(opts []Option) types.RequestOptions {
	var options types.RequestOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}
