package pipeline

import "errors"

var (
	ErrNotFound          = errors.New("pipeline stage not found")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrNotReady          = errors.New("earlier stage not completed")
	ErrGated             = errors.New("stage gate not cleared")
)
