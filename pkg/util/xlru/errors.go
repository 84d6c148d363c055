package xlru

import "errors"

var (
	// ErrInvalidSize 缓存大小无效
	ErrInvalidSize = errors.New("xlru: size must be greater than 0")

	// ErrSizeExceedsMax 缓存大小超过上限 (16,777,216)
	ErrSizeExceedsMax = errors.New("xlru: size must not exceed 16777216")

	// ErrInvalidTTL TTL 为负
	ErrInvalidTTL = errors.New("xlru: TTL must not be negative")
)
