package deployments

import "errors"

var (
	ErrNotFound          = errors.New("deployment not found")
	ErrConflict          = errors.New("deployment conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrApprovalRequired  = errors.New("approval required")
	ErrNoStableRelease   = errors.New("no stable release to roll back to")

	ErrApprovalNotFound = errors.New("approval not found")
	ErrRollbackNotFound = errors.New("rollback not found")
)
