package database

import "errors"

// Sentinel kinds for connector errors.
var (
	ErrDisabled     = errors.New("database disabled")
	ErrNotConnected = errors.New("database not connected")
	ErrInvalidDSN   = errors.New("invalid database dsn")
)
