package site

import "errors"

// Error constants
var (
	ErrNotFound   = errors.New("file not found")
	ErrNotRegular = errors.New("not a regular file")
)
