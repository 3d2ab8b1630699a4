package types

import (
	"encoding/json"
	"time"
)

// Application codes carried in the response envelope.
const (
	CodeSuccess      = 200
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultRetryCount    = 3
	DefaultRetryDelay    = time.Second
	DefaultCacheTime     = 5 * time.Minute
	DefaultRedirectDelay = 1500 * time.Millisecond
)

type ErrorMessageMode string

const (
	ErrorModeMessage ErrorMessageMode = "message"
	ErrorModeNone    ErrorMessageMode = "none"
)

// RequestOptions are the per-request knobs. Zero values fall back to the
// client defaults; RetryCount is a pointer so an explicit 0 disables retries.
type RequestOptions struct {
	EnableCache      bool
	CacheTime        time.Duration
	RetryCount       *int
	RetryDelay       time.Duration
	SkipTransform    bool
	ShowLoading      bool
	SkipHeaders      bool
	RawResponse      bool
	Timeout          time.Duration
	Headers          map[string]string
	ErrorMessageMode ErrorMessageMode
}

type RequestDescriptor struct {
	Method  string
	URL     string
	Query   map[string]interface{}
	Body    interface{}
	Options RequestOptions
}

// Multipart is a file upload body. It is never normalized.
type Multipart struct {
	FieldName string
	FileName  string
	Content   []byte
	Fields    map[string]string
}

// Envelope is the backend response shape {code, data, message}.
type Envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what a dispatch settles to. Err is nil only on success.
type Result struct {
	Outcome   Outcome
	Data      []byte
	FromCache bool
	Err       error
}

func (r *Result) OK() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

func Int(v int) *int {
	return &v
}
