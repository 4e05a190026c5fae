package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tracker owns the ordered stage list of each deployment. It answers
// "can this stage start" and "is the pipeline done"; it knows nothing about
// rollbacks, and about approvals only through the GateChecker boolean.
type Tracker struct {
	stages *Repository

	gate   GateChecker
	config Config

	logger *zap.Logger
}

func NewTracker(stages *Repository, gate GateChecker, config Config, logger *zap.Logger) *Tracker {
	if len(config.Stages) == 0 {
		config.Stages = CanonicalStages
	}
	if config.StageTimeout <= 0 {
		config.StageTimeout = time.Hour
	}

	return &Tracker{
		stages: stages,
		gate:   gate,
		config: config,
		logger: logger,
	}
}

// Materialize creates the configured stage sequence for a deployment, all
// pending, ordered 0..n-1.
func (t *Tracker) Materialize(ctx context.Context, deploymentID uuid.UUID) ([]Stage, error) {
	t.logger.Info("materializing pipeline",
		zap.String("deployment_id", deploymentID.String()),
		zap.Strings("stages", t.config.Stages),
	)

	drafts := make([]StageDraft, len(t.config.Stages))
	for i, name := range t.config.Stages {
		drafts[i] = StageDraft{
			DeploymentID:   deploymentID,
			Name:           name,
			Order:          i,
			TimeoutSeconds: int(t.config.StageTimeout.Seconds()),
		}
	}

	stages, err := t.stages.CreateBatch(ctx, drafts)
	if err != nil {
		t.logger.Error("failed to materialize pipeline", zap.Error(err))
		return nil, err
	}

	return stages, nil
}

// Get retrieves a stage by ID.
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*Stage, error) {
	return t.stages.GetByID(ctx, id)
}

// ListByDeployment retrieves a deployment's stages in execution order.
func (t *Tracker) ListByDeployment(ctx context.Context, deploymentID uuid.UUID) ([]Stage, error) {
	return t.stages.ListByDeployment(ctx, deploymentID)
}

// NextRunnable returns the stage an executor should pick up next: the first
// pending stage whose predecessors are all completed and whose gate is clear.
// The second return is false when no stage is currently runnable.
func (t *Tracker) NextRunnable(ctx context.Context, deploymentID uuid.UUID) (*Stage, bool, error) {
	stages, err := t.stages.ListByDeployment(ctx, deploymentID)
	if err != nil {
		return nil, false, err
	}

	for i := range stages {
		stage := &stages[i]

		switch stage.Status {
		case StatusCompleted:
			continue
		case StatusRunning, StatusFailed:
			// Pipeline is busy or broken; nothing to hand out.
			return nil, false, nil
		case StatusPending:
			cleared, gateErr := t.gate.Cleared(ctx, deploymentID, stage.Name)
			if gateErr != nil {
				return nil, false, gateErr
			}
			if !cleared {
				return nil, false, nil
			}
			return stage, true, nil
		}
	}

	return nil, false, nil
}

// AllCompleted reports whether every stage of the deployment is completed.
func (t *Tracker) AllCompleted(ctx context.Context, deploymentID uuid.UUID) (bool, error) {
	stages, err := t.stages.ListByDeployment(ctx, deploymentID)
	if err != nil {
		return false, err
	}

	if len(stages) == 0 {
		return false, nil
	}

	for i := range stages {
		if stages[i].Status != StatusCompleted {
			return false, nil
		}
	}

	return true, nil
}

// CanStart validates that the stage may enter running: every earlier-order
// stage is completed and the stage's gate is clear.
func (t *Tracker) CanStart(ctx context.Context, stage *Stage) error {
	siblings, err := t.stages.ListByDeployment(ctx, stage.DeploymentID)
	if err != nil {
		return err
	}

	for i := range siblings {
		sibling := &siblings[i]
		if sibling.Order >= stage.Order {
			continue
		}
		if sibling.Status != StatusCompleted {
			return fmt.Errorf(
				"%w: stage %q (order %d) is %s",
				ErrNotReady, sibling.Name, sibling.Order, sibling.Status,
			)
		}
	}

	cleared, err := t.gate.Cleared(ctx, stage.DeploymentID, stage.Name)
	if err != nil {
		return err
	}
	if !cleared {
		return fmt.Errorf("%w: stage %q awaits approval", ErrGated, stage.Name)
	}

	return nil
}

// Apply transitions a stage to the given status, setting each timestamp
// exactly once. Re-applying the identical status is a no-op.
func (t *Tracker) Apply(ctx context.Context, id uuid.UUID, to Status, output string) (*Stage, error) {
	stage, err := t.stages.Update(ctx, id, func(stage *Stage) error {
		if stage.Status == to {
			return nil
		}

		if !stage.Status.CanTransitionTo(to) {
			return fmt.Errorf(
				"%w: stage %q cannot go %s -> %s",
				ErrInvalidTransition, stage.Name, stage.Status, to,
			)
		}

		now := time.Now()
		stage.Status = to
		switch to {
		case StatusRunning:
			if stage.StartedAt == nil {
				stage.StartedAt = &now
			}
		case StatusCompleted, StatusFailed:
			if stage.CompletedAt == nil {
				stage.CompletedAt = &now
			}
		case StatusPending:
		}

		if output != "" {
			stage.Output = output
		}

		return nil
	})
	if err != nil {
		t.logger.Error("failed to apply stage status",
			zap.String("stage_id", id.String()),
			zap.String("status", string(to)),
			zap.Error(err),
		)
		return nil, err
	}

	return stage, nil
}

// Discard deletes a deployment's stages. Only used to compensate a failed
// promotion before the deployment itself is deleted.
func (t *Tracker) Discard(ctx context.Context, deploymentID uuid.UUID) error {
	t.logger.Warn("discarding pipeline", zap.String("deployment_id", deploymentID.String()))

	return t.stages.DeleteByDeployment(ctx, deploymentID)
}

// StampSkipped stamps completed_at on stages that were never started when the
// pipeline died. Their status stays pending to keep an accurate record of
// what was actually reached.
func (t *Tracker) StampSkipped(ctx context.Context, deploymentID uuid.UUID, at time.Time) error {
	return t.stages.UpdateByDeployment(ctx, deploymentID, func(stage *Stage) bool {
		if stage.Status != StatusPending || stage.CompletedAt != nil {
			return false
		}

		stage.CompletedAt = &at
		return true
	})
}
