package releases

import "errors"

var (
	ErrNotFound   = errors.New("release not found")
	ErrConflict   = errors.New("release already exists")
	ErrNotAllowed = errors.New("operation not allowed")
)
