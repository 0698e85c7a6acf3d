package pebble

import "errors"

var (
	ErrClosed = errors.New("pebble: store is closed")
)

// Option keys understood by this engine in addition to the recognized ones.
const (
	KeyInMemory  = "in_memory"
	KeyCacheSize = "cache_size"
)
