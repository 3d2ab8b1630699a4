package logger

import (
	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/types"
)

// Request describes a dispatched request.
func Request(desc *types.RequestDescriptor) []zap.Field {
	if desc == nil {
		return nil
	}
	return []zap.Field{
		zap.String("method", desc.Method),
		zap.String("url", desc.URL),
	}
}

func Identity(identity string) zap.Field {
	return zap.String("identity", identity)
}

func Attempt(current, limit int) []zap.Field {
	return []zap.Field{zap.Int("attempt", current), zap.Int("max_retries", limit)}
}

// Failure flattens a request failure into kind, code and message fields.
// Errors that did not come from the pipeline are logged as-is.
func Failure(err error) []zap.Field {
	if err == nil {
		return nil
	}

	reqErr, ok := types.AsRequestError(err)
	if !ok {
		return []zap.Field{zap.Error(err)}
	}

	fields := []zap.Field{zap.Stringer("error_kind", reqErr.Kind), zap.Error(err)}
	if reqErr.Code != 0 {
		fields = append(fields, zap.Int("error_code", reqErr.Code))
	}
	return fields
}

// With joins field groups for a single log call.
func With(groups ...[]zap.Field) []zap.Field {
	size := 0
	for _, group := range groups {
		size += len(group)
	}

	out := make([]zap.Field, 0, size)
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}
