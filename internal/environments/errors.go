package environments

import "errors"

var (
	ErrNotFound = errors.New("environment not found")
	ErrConflict = errors.New("environment already exists")
)
