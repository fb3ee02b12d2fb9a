package central

import "time"

// RetryConfig parameterizes the exponential backoff used for requests to
// the feeder. Retries only apply to transport-level failures and 5xx
// responses (spec.md §6).
type RetryConfig struct {
	RetryBaseMillis    uint64 `toml:"retry_base_millis"`
	RetryMaxDelayMillis uint64 `toml:"retry_max_delay_millis"`
	MaxRetries         uint64 `toml:"max_retries"`
}

// Config is central.url / central.concurrent_requests / central.http_headers
// / central.retry_config.* from spec.md §6.
type Config struct {
	URL                string            `toml:"url"`
	ConcurrentRequests int               `toml:"concurrent_requests"`
	HTTPHeaders        map[string]string `toml:"http_headers"`
	RetryConfig        RetryConfig       `toml:"retry_config"`
	RequestTimeout     time.Duration     `toml:"request_timeout"`
}

// DefaultConfig mirrors the values a freshly bootstrapped node would ship
// with.
func DefaultConfig() Config {
	return Config{
		ConcurrentRequests: 10,
		RetryConfig: RetryConfig{
			RetryBaseMillis:     50,
			RetryMaxDelayMillis: 10_000,
			MaxRetries:          10,
		},
		RequestTimeout: 30 * time.Second,
	}
}
