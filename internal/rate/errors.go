package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter has used up its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
