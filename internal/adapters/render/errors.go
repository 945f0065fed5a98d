package render

import "errors"

var (
	ErrEmptyOutput = errors.New("render engine produced no output")
	ErrInvalidPath = errors.New("invalid output file name")
)
