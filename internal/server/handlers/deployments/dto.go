package deployments

import (
	"time"

	"github.com/google/uuid"

	"github.com/harborcd/harborcd/internal/deployments"
	"github.com/harborcd/harborcd/internal/metrics"
	"github.com/harborcd/harborcd/internal/pipeline"
)

// CreateRequest represents the request payload for creating a deployment.
type CreateRequest struct {
	ReleaseID     uuid.UUID `json:"release_id"     validate:"required"`
	EnvironmentID uuid.UUID `json:"environment_id" validate:"required"`
	Requester     uuid.UUID `json:"requester"      validate:"required"`
}

// StageResultRequest represents an executor's stage status report.
type StageResultRequest struct {
	Status string `json:"status" validate:"required,oneof=pending running completed failed"`
	Output string `json:"output" validate:"max=10000"`
}

// ApprovalRequest represents a decision on a deployment's gated stage.
type ApprovalRequest struct {
	Approver uuid.UUID `json:"approver" validate:"required"`
	Decision string    `json:"decision" validate:"required,oneof=approved rejected"`
	Comment  string    `json:"comment"  validate:"max=1000"`
}

// RollbackRequest represents the request payload for rolling back a deployment.
type RollbackRequest struct {
	Initiator uuid.UUID `json:"initiator" validate:"required"`
	Reason    string    `json:"reason"    validate:"required,min=1,max=1000"`
	Force     bool      `json:"force"`
}

// MetricRequest represents the request payload for recording a metric.
type MetricRequest struct {
	Name  string  `json:"name"  validate:"required,min=1,max=100"`
	Value float64 `json:"value" validate:"required"`
	Unit  string  `json:"unit"  validate:"max=50"`
}

// DeploymentResponse represents the response payload for a deployment.
type DeploymentResponse struct {
	CreateRequest

	ID          uuid.UUID  `json:"id"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StageResponse represents the response payload for a pipeline stage.
type StageResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Order       int        `json:"order"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Output      string     `json:"output,omitempty"`
}

// ApprovalResponse represents the response payload for an approval.
type ApprovalResponse struct {
	ID           uuid.UUID  `json:"id"`
	DeploymentID uuid.UUID  `json:"deployment_id"`
	StageName    string     `json:"stage_name"`
	Approver     *uuid.UUID `json:"approver,omitempty"`
	Decision     string     `json:"decision"`
	Comment      string     `json:"comment,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

// RollbackResponse represents the response payload for a rollback.
type RollbackResponse struct {
	ID              uuid.UUID  `json:"id"`
	DeploymentID    uuid.UUID  `json:"deployment_id"`
	TargetReleaseID uuid.UUID  `json:"target_release_id"`
	Status          string     `json:"status"`
	Initiator       uuid.UUID  `json:"initiator"`
	Reason          string     `json:"reason"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MetricResponse represents the response payload for a metric sample.
type MetricResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DeploymentDetailResponse bundles a deployment with its stages and,
// optionally, its metrics.
type DeploymentDetailResponse struct {
	DeploymentResponse

	Stages  []StageResponse  `json:"stages"`
	Metrics []MetricResponse `json:"metrics,omitempty"`
}

func newDeploymentResponse(domain *deployments.Deployment) DeploymentResponse {
	return DeploymentResponse{
		CreateRequest: CreateRequest{
			ReleaseID:     domain.ReleaseID,
			EnvironmentID: domain.EnvironmentID,
			Requester:     domain.Requester,
		},
		ID:          domain.ID,
		Status:      string(domain.Status),
		StartedAt:   domain.StartedAt,
		CompletedAt: domain.CompletedAt,
		CreatedAt:   domain.CreatedAt,
		UpdatedAt:   domain.UpdatedAt,
	}
}

func newStageResponse(domain *pipeline.Stage) StageResponse {
	return StageResponse{
		ID:          domain.ID,
		Name:        domain.Name,
		Order:       domain.Order,
		Status:      string(domain.Status),
		StartedAt:   domain.StartedAt,
		CompletedAt: domain.CompletedAt,
		Output:      domain.Output,
	}
}

func newApprovalResponse(domain *deployments.Approval) ApprovalResponse {
	return ApprovalResponse{
		ID:           domain.ID,
		DeploymentID: domain.DeploymentID,
		StageName:    domain.StageName,
		Approver:     domain.Approver,
		Decision:     string(domain.Decision),
		Comment:      domain.Comment,
		DecidedAt:    domain.DecidedAt,
	}
}

func newRollbackResponse(domain *deployments.Rollback) RollbackResponse {
	return RollbackResponse{
		ID:              domain.ID,
		DeploymentID:    domain.DeploymentID,
		TargetReleaseID: domain.TargetReleaseID,
		Status:          string(domain.Status),
		Initiator:       domain.Initiator,
		Reason:          domain.Reason,
		CompletedAt:     domain.CompletedAt,
		CreatedAt:       domain.CreatedAt,
	}
}

func newMetricResponse(domain *metrics.Metric) MetricResponse {
	return MetricResponse{
		ID:         domain.ID,
		Name:       domain.Name,
		Value:      domain.Value,
		Unit:       domain.Unit,
		RecordedAt: domain.CreatedAt,
	}
}
