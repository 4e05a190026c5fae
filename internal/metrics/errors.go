package metrics

import "errors"

var ErrNotFound = errors.New("deployment not found")
