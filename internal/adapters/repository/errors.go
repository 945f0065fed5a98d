package repository

import "errors"

// Sentinel kinds for history errors.
var (
	ErrNotFound     = errors.New("run not found")
	ErrInvalidLimit = errors.New("invalid history limit")
)
