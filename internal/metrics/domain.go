package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MetricDraft is one performance sample reported against a deployment.
type MetricDraft struct {
	// References
	DeploymentID uuid.UUID

	// Sample
	Name  string // e.g. "deploy_duration", "peak_memory"
	Value float64
	Unit  string // e.g. "seconds", "mb"
}

// Metric is append-only; there is no update path.
type Metric struct {
	MetricDraft

	ID        uuid.UUID
	CreatedAt time.Time
}

// DeploymentChecker reports whether a deployment exists. Implemented by the
// deployments package to keep this one a leaf.
type DeploymentChecker interface {
	Exists(ctx context.Context, deploymentID uuid.UUID) (bool, error)
}
