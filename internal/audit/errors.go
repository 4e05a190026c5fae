package audit

import "errors"

var ErrNotFound = errors.New("audit entry not found")
