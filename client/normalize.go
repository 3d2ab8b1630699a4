package client

import (
	"github.com/saiset-co/sai-request/types"
)

// Normalize drops nil and empty-string values from the query and from map
// bodies. Other values, nested ones included, are left alone. Multipart and
// typed bodies are passed through untouched.
func Normalize(desc *types.RequestDescriptor) *types.RequestDescriptor {
	out := cloneDescriptor(desc)
	out.Query = trimEmpty(out.Query)

	switch body := out.Body.(type) {
	case map[string]interface{}:
		out.Body = trimEmpty(body)
	case map[string]string:
		trimmed := make(map[string]string, len(body))
		for k, v := range body {
			if v != "" {
				trimmed[k] = v
			}
		}
		out.Body = trimmed
	}

	return out
}

func trimEmpty(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}

	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if isEmptyValue(v) {
			continue
		}
		out[k] = v
	}

	return out
}

func isEmptyValue(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case *string:
		return value == nil || *value == ""
	default:
		return false
	}
}

func cloneDescriptor(desc *types.RequestDescriptor) *types.RequestDescriptor {
	out := *desc

	if desc.Query != nil {
		out.Query = make(map[string]interface{}, len(desc.Query))
		for k, v := range desc.Query {
			out.Query[k] = v
		}
	}

	switch body := desc.Body.(type) {
	case map[string]interface{}:
		copied := make(map[string]interface{}, len(body))
		for k, v := range body {
			copied[k] = v
		}
		out.Body = copied
	case map[string]string:
		copied := make(map[string]string, len(body))
		for k, v := range body {
			copied[k] = v
		}
		out.Body = copied
	}

	if desc.Options.Headers != nil {
		out.Options.Headers = make(map[string]string, len(desc.Options.Headers))
		for k, v := range desc.Options.Headers {
			out.Options.Headers[k] = v
		}
	}

	return &out
}
