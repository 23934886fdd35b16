package rate

import "errors"

var (
	// ErrRateLimited is returned when a fixed-window counter exceeds its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable indicates the rate limit backend is unreachable.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
