package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"   // Stage has not started
	StatusRunning   Status = "running"   // Stage is executing
	StatusCompleted Status = "completed" // Stage finished successfully
	StatusFailed    Status = "failed"    // Stage finished with an error
)

// statusTransitions is the closed set of legal stage status changes.
// There are no regressions; completed and failed are terminal.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// CanonicalStages is the default promotion pipeline, in execution order.
var CanonicalStages = []string{"build", "test", "security_scan", "deploy", "smoke_test"}

type Config struct {
	// Stages is the ordered stage sequence materialized per deployment.
	Stages []string

	// StageTimeout is stored on each stage for external supervisors.
	// The tracker itself never enforces it.
	StageTimeout time.Duration
}

type StageDraft struct {
	// References
	DeploymentID uuid.UUID

	// Stage Details
	Name           string
	Order          int
	TimeoutSeconds int
}

type Stage struct {
	StageDraft

	// Status
	Status      Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	Output      string // Free text or log reference reported by the executor

	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GateChecker answers whether a named stage of a deployment is clear to start.
// The tracker knows nothing about approvals beyond this boolean.
type GateChecker interface {
	Cleared(ctx context.Context, deploymentID uuid.UUID, stage string) (bool, error)
}
