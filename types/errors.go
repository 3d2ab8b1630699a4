package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
)

var (
	ErrCacheKeyEmpty         = errors.New("cache key empty")
	ErrCacheConnectionFailed = errors.New("cache connection failed")
	ErrCacheTypeUnknown      = errors.New("cache type unknown")
	ErrCacheOperationFailed  = errors.New("cache operation failed")
	ErrCacheIsDisabled       = errors.New("cache manager is disabled")
)

var (
	ErrStorageKeyEmpty    = errors.New("storage key empty")
	ErrStorageTypeUnknown = errors.New("storage type unknown")
	ErrStorageOpenFailed  = errors.New("storage open failed")
)

var (
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
	ErrMetricsNotRunning  = errors.New("metrics manager is not running")
)

var (
	ErrClientNotRunning      = errors.New("client not running")
	ErrClientRequestFailed   = errors.New("client request failed")
	ErrClientResponseInvalid = errors.New("client response invalid")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker open")
	ErrInterceptorRejected   = errors.New("interceptor rejected request")
)

// Request failure taxonomy. Every *RequestError unwraps to exactly one of these.
var (
	ErrRequestCancelled  = errors.New("request cancelled")
	ErrRequestSuperseded = errors.New("duplicate request superseded")
	ErrNetworkFailure    = errors.New("network failure")
	ErrApplication       = errors.New("application error")
	ErrIdentityHydration = errors.New("identity hydration failed")
)

var (
	ErrNotifierNotRunning = errors.New("notifier not running")
)

var (
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
	ErrLoggerTypeUnknown   = errors.New("logger type unknown")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
)

var (
	ErrServiceIsRunning    = errors.New("service is running")
	ErrServiceIsNotRunning = errors.New("service is not running")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}

type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindCancelled
	KindApplication
	KindHydration
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindCancelled:
		return "cancelled"
	case KindApplication:
		return "application"
	case KindHydration:
		return "hydration"
	default:
		return "unknown"
	}
}

// RequestError is the single failure shape surfaced by the request pipeline.
// Code carries the application code or HTTP status when one is known.
type RequestError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *RequestError) Unwrap() []error {
	errs := []error{e.base()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *RequestError) base() error {
	switch e.Kind {
	case KindCancelled:
		return ErrRequestCancelled
	case KindApplication:
		return ErrApplication
	case KindHydration:
		return ErrIdentityHydration
	default:
		return ErrNetworkFailure
	}
}

func NewCancelledError(cause error) *RequestError {
	return &RequestError{Kind: KindCancelled, Err: cause}
}

func NewNetworkError(code int, message string, cause error) *RequestError {
	return &RequestError{Kind: KindNetwork, Code: code, Message: message, Err: cause}
}

func NewApplicationError(code int, message string) *RequestError {
	return &RequestError{Kind: KindApplication, Code: code, Message: message}
}

// AsRequestError extracts the *RequestError carried by err, if any.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrRequestCancelled)
}
