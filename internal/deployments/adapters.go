package deployments

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ApprovalGate answers whether a stage may start given the deployment's
// recorded approvals. A stage with no approval attached is ungated.
type ApprovalGate struct {
	approvals *ApprovalRepository
}

func NewApprovalGate(approvals *ApprovalRepository) *ApprovalGate {
	return &ApprovalGate{approvals: approvals}
}

func (g *ApprovalGate) Cleared(ctx context.Context, deploymentID uuid.UUID, stage string) (bool, error) {
	approval, err := g.approvals.GetByStage(ctx, deploymentID, stage)
	if errors.Is(err, ErrApprovalNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	return approval.Decision == DecisionApproved, nil
}

// DeploymentChecker lets other components verify deployment references without
// importing this package's repositories.
type DeploymentChecker struct {
	deployments *Repository
}

func NewDeploymentChecker(deployments *Repository) *DeploymentChecker {
	return &DeploymentChecker{deployments: deployments}
}

func (c *DeploymentChecker) Exists(ctx context.Context, deploymentID uuid.UUID) (bool, error) {
	return c.deployments.Exists(ctx, deploymentID)
}
