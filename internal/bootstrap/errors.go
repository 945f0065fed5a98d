package bootstrap

import "errors"

// Sentinel errors for Build.
var (
	ErrDatabase = errors.New("roster database")
	ErrRenderer = errors.New("document renderer")
	ErrHistory  = errors.New("run history")
)
