package deployments

import (
	"time"

	"github.com/google/uuid"
)

type RollbackStatus string

const (
	RollbackPending    RollbackStatus = "pending"
	RollbackInProgress RollbackStatus = "in_progress"
	RollbackSucceeded  RollbackStatus = "succeeded"
	RollbackFailed     RollbackStatus = "failed"
)

type RollbackDraft struct {
	// References
	DeploymentID    uuid.UUID // The failed deployment being reverted
	TargetReleaseID uuid.UUID // The release being restored

	// Metadata
	Initiator uuid.UUID
	Reason    string
}

// Rollback records the reversion of a deployment to a prior stable release.
type Rollback struct {
	RollbackDraft

	Status      RollbackStatus
	CompletedAt *time.Time

	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
