package database

import "errors"

// Sentinel errors for the roster source.
var (
	ErrNoPool  = errors.New("database pool not configured")
	ErrScanRow = errors.New("scan roster row")
)
