package exception

import "errors"

var (
	ErrCacheMiss    = errors.New("cache: key missing or expired")
	ErrCacheExpired = errors.New("cache: value past ttl")
)
