package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrFull   = errors.New("report queue full")
	ErrClosed = errors.New("report queue closed")
)
