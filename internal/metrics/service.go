package metrics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service records post-hoc performance samples against deployments. It holds
// no aggregation logic; summaries are a reporting concern elsewhere.
type Service struct {
	metrics *Repository

	deployments DeploymentChecker

	logger *zap.Logger
}

func NewService(metrics *Repository, deployments DeploymentChecker, logger *zap.Logger) *Service {
	return &Service{
		metrics:     metrics,
		deployments: deployments,
		logger:      logger,
	}
}

// RecordMetric appends a sample to a deployment.
func (s *Service) RecordMetric(
	ctx context.Context,
	deploymentID uuid.UUID,
	name string,
	value float64,
	unit string,
) (*Metric, error) {
	s.logger.Debug("recording metric",
		zap.String("deployment_id", deploymentID.String()),
		zap.String("name", name),
	)

	exists, err := s.deployments.Exists(ctx, deploymentID)
	if err != nil {
		s.logger.Error("failed to check deployment", zap.Error(err))
		return nil, fmt.Errorf("failed to check deployment: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, deploymentID.String())
	}

	metric, err := s.metrics.Create(ctx, &MetricDraft{
		DeploymentID: deploymentID,
		Name:         name,
		Value:        value,
		Unit:         unit,
	})
	if err != nil {
		s.logger.Error("failed to record metric", zap.Error(err))
		return nil, err
	}

	return metric, nil
}

// ListByDeployment retrieves a deployment's samples, oldest first.
func (s *Service) ListByDeployment(ctx context.Context, deploymentID uuid.UUID) ([]Metric, error) {
	metrics, err := s.metrics.ListByDeployment(ctx, deploymentID)
	if err != nil {
		s.logger.Error("failed to list metrics", zap.Error(err))
		return nil, err
	}

	return metrics, nil
}
