package metrics

// Instruments recorded along the request path.
const (
	RequestsTotal          = "client_requests_total"
	RequestDuration        = "client_request_duration_seconds"
	CacheLookupsTotal      = "client_cache_total"
	RetriesTotal           = "client_retries_total"
	CancellationsTotal     = "client_cancellations_total"
	LoadingActive          = "client_loading_active"
	BreakerState           = "client_breaker_state"
	CacheOperationsTotal   = "cache_operations_total"
	CacheOperationDuration = "cache_operation_duration_seconds"
	NoticesTotal           = "notify_notices_total"
)

// RequestBuckets covers a fast cache-adjacent call up to the default
// request timeout.
var RequestBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15}

// CacheBuckets covers in-process and redis round trips.
var CacheBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}

var defaultBuckets = map[string][]float64{
	RequestDuration:        RequestBuckets,
	CacheOperationDuration: CacheBuckets,
}
