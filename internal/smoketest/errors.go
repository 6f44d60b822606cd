package smoketest

import "errors"

// Error constants
var (
	ErrChecksFailed   = errors.New("smoke checks failed")
	ErrUnexpectedBody = errors.New("unexpected response body")
	ErrStatus         = errors.New("unexpected status")
	ErrNotMonotonic   = errors.New("health timestamps not strictly increasing")
)
