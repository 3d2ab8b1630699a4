package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// EncodeQuery renders query parameters in sorted key order. Slice values
// become repeated keys.
func EncodeQuery(query map[string]interface{}) string {
	if len(query) == 0 {
		return ""
	}

	values := url.Values{}
	for key, value := range query {
		switch v := value.(type) {
		case []string:
			for _, item := range v {
				values.Add(key, item)
			}
		case []interface{}:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		case nil:
		default:
			values.Add(key, fmt.Sprint(v))
		}
	}

	return values.Encode()
}

func JoinURL(baseURL, path string) string {
	if baseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
