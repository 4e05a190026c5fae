package deployments

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harborcd/harborcd/internal/metrics"
	"github.com/harborcd/harborcd/internal/pipeline"
)

type Status string

const (
	StatusPending    Status = "pending"     // Deployment created, pipeline not materialized
	StatusInProgress Status = "in_progress" // Pipeline is executing
	StatusSucceeded  Status = "succeeded"   // All stages completed
	StatusFailed     Status = "failed"      // A stage failed or an approval was rejected
	StatusRolledBack Status = "rolled_back" // Reverted to a prior release
)

// statusTransitions is the closed set of legal deployment status changes.
// failed is semi-terminal: its only exit is rolled_back, via ExecuteRollback.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusSucceeded, StatusFailed},
	StatusFailed:     {StatusRolledBack},
	StatusSucceeded:  {},
	StatusRolledBack: {},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

type Config struct {
	// GatedStage is the stage name that requires an approval before it may
	// start. Empty disables the gate.
	GatedStage string
}

type DeploymentDraft struct {
	// References
	ReleaseID     uuid.UUID
	EnvironmentID uuid.UUID

	// Metadata
	Requester uuid.UUID
}

// Deployment is one attempt to move a release into an environment.
type Deployment struct {
	DeploymentDraft

	// Status
	Status      Status
	StartedAt   *time.Time
	CompletedAt *time.Time

	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the deployment still blocks a new deployment of the
// same (release, environment) pair.
func (d *Deployment) Active() bool {
	return !d.Status.Terminal()
}

// Transition moves the deployment to the given status, validating against the
// transition table and setting each timestamp exactly once.
func (d *Deployment) Transition(to Status, at time.Time) error {
	if !d.Status.CanTransitionTo(to) {
		return fmt.Errorf(
			"%w: deployment %s cannot go %s -> %s",
			ErrInvalidTransition, d.ID, d.Status, to,
		)
	}

	d.Status = to
	switch to {
	case StatusInProgress:
		if d.StartedAt == nil {
			d.StartedAt = &at
		}
	case StatusSucceeded, StatusFailed, StatusRolledBack:
		if d.CompletedAt == nil {
			d.CompletedAt = &at
		}
	case StatusPending:
	}

	return nil
}

// DeploymentWithStages is the read model for GetDeploymentWithStages.
type DeploymentWithStages struct {
	Deployment

	Stages []pipeline.Stage
}

// DeploymentWithMetrics is the read model for GetDeploymentWithMetrics.
type DeploymentWithMetrics struct {
	DeploymentWithStages

	Metrics []metrics.Metric
}
