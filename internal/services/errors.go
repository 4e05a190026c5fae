package services

import "errors"

var (
	ErrNotFound = errors.New("service not found")
	ErrConflict = errors.New("service already exists")
)
