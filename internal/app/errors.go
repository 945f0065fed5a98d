package service

import "errors"

var (
	// ErrExportDisabled is returned when the license key or database
	// credentials are missing.
	ErrExportDisabled  = errors.New("export disabled: license key or database credentials missing")
	ErrInvalidRequest  = errors.New("invalid export request")
	ErrRunNotFound     = errors.New("export run not found")
	ErrHistoryDisabled = errors.New("run history not configured")
	ErrStopped         = errors.New("service stopped")
)
