package deployments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/harborcd/harborcd/internal/audit"
	"github.com/harborcd/harborcd/internal/environments"
	"github.com/harborcd/harborcd/internal/metrics"
	"github.com/harborcd/harborcd/internal/pipeline"
	"github.com/harborcd/harborcd/internal/releases"
)

// Service orchestrates the deployment lifecycle: creation, pipeline
// progression, approval gates and rollbacks.
type Service struct {
	config Config

	deployments *Repository
	approvals   *ApprovalRepository
	rollbacks   *RollbackRepository

	releases     *releases.Service
	environments *environments.Service
	pipeline     *pipeline.Tracker
	metrics      *metrics.Repository
	audit        *audit.Service

	// locks serializes work per deployment id and per (release, environment)
	// pair so status checks and writes cannot interleave.
	locks *lockTable

	logger *zap.Logger
}

func NewService(
	config Config,
	deployments *Repository,
	approvals *ApprovalRepository,
	rollbacks *RollbackRepository,
	releasesSvc *releases.Service,
	environmentsSvc *environments.Service,
	tracker *pipeline.Tracker,
	metricsRepo *metrics.Repository,
	auditSvc *audit.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		config:       config,
		deployments:  deployments,
		approvals:    approvals,
		rollbacks:    rollbacks,
		releases:     releasesSvc,
		environments: environmentsSvc,
		pipeline:     tracker,
		metrics:      metricsRepo,
		audit:        auditSvc,
		locks:        newLockTable(),
		logger:       logger,
	}
}

func pairKey(releaseID, environmentID uuid.UUID) string {
	return "pair:" + releaseID.String() + ":" + environmentID.String()
}

func deploymentKey(id uuid.UUID) string {
	return "deployment:" + id.String()
}

// CreateDeployment creates a pending deployment of a release into an
// environment. A release may have at most one active deployment per
// environment.
func (s *Service) CreateDeployment(
	ctx context.Context,
	releaseID, environmentID, requester uuid.UUID,
) (*Deployment, error) {
	release, environment, err := s.resolveTarget(ctx, releaseID, environmentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(pairKey(releaseID, environmentID))
	defer unlock()

	deployment, err := s.deployments.Create(ctx, &DeploymentDraft{
		ReleaseID:     releaseID,
		EnvironmentID: environmentID,
		Requester:     requester,
	})
	if err != nil {
		s.logger.Error("failed to create deployment",
			zap.String("release_id", releaseID.String()),
			zap.String("environment_id", environmentID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	deploymentsCreated.Inc()
	s.auditAppend(ctx, &requester, "deployment.create", "deployment", deployment.ID, map[string]string{
		"release_id":     releaseID.String(),
		"environment_id": environmentID.String(),
		"version":        release.Version,
		"environment":    environment.Name,
	})

	s.logger.Info("deployment created",
		zap.String("deployment_id", deployment.ID.String()),
		zap.String("release_id", releaseID.String()),
		zap.String("environment", environment.Name),
	)
	return deployment, nil
}

// PromoteRelease deploys a release into an environment in one step: the
// deployment is created, its pipeline materialized, the gated stage's approval
// opened, the release marked promoted and the deployment started. Partial
// failures are compensated synchronously so no half-promoted state survives.
func (s *Service) PromoteRelease(
	ctx context.Context,
	releaseID, environmentID, requester uuid.UUID,
) (*Deployment, error) {
	release, environment, err := s.resolveTarget(ctx, releaseID, environmentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(pairKey(releaseID, environmentID))
	defer unlock()

	deployment, err := s.deployments.Create(ctx, &DeploymentDraft{
		ReleaseID:     releaseID,
		EnvironmentID: environmentID,
		Requester:     requester,
	})
	if err != nil {
		return nil, err
	}

	s.auditAppend(ctx, &requester, "deployment.create", "deployment", deployment.ID, map[string]string{
		"release_id":     releaseID.String(),
		"environment_id": environmentID.String(),
		"version":        release.Version,
		"environment":    environment.Name,
	})

	stages, err := s.pipeline.Materialize(ctx, deployment.ID)
	if err != nil {
		s.unwindPromotion(ctx, deployment.ID, false)
		return nil, fmt.Errorf("failed to materialize pipeline: %w", err)
	}

	gated := s.config.GatedStage != "" && lo.ContainsBy(stages, func(stage pipeline.Stage) bool {
		return stage.Name == s.config.GatedStage
	})
	if gated {
		if _, approvalErr := s.approvals.Create(ctx, &ApprovalDraft{
			DeploymentID: deployment.ID,
			StageName:    s.config.GatedStage,
		}); approvalErr != nil {
			s.unwindPromotion(ctx, deployment.ID, false)
			return nil, approvalErr
		}
	}

	priorStatus := release.Status
	deploymentID := deployment.ID
	now := time.Now()
	if _, promoteErr := s.releases.MarkPromoted(ctx, releaseID, environmentID, now); promoteErr != nil {
		s.unwindPromotion(ctx, deploymentID, true)
		return nil, promoteErr
	}

	deployment, err = s.deployments.Update(ctx, deploymentID, func(d *Deployment) error {
		return d.Transition(StatusInProgress, now)
	})
	if err != nil {
		if _, revertErr := s.releases.RevertPromotion(ctx, releaseID, environmentID, priorStatus); revertErr != nil {
			s.logger.Error("failed to revert promotion",
				zap.String("release_id", releaseID.String()),
				zap.Error(revertErr),
			)
		}
		s.unwindPromotion(ctx, deploymentID, true)
		return nil, err
	}

	deploymentsCreated.Inc()
	s.auditAppend(ctx, &requester, "release.promote", "release", releaseID, map[string]string{
		"deployment_id":  deployment.ID.String(),
		"environment_id": environmentID.String(),
		"version":        release.Version,
		"environment":    environment.Name,
	})

	s.logger.Info("release promoted",
		zap.String("release_id", releaseID.String()),
		zap.String("version", release.Version),
		zap.String("environment", environment.Name),
		zap.String("deployment_id", deployment.ID.String()),
	)
	return deployment, nil
}

// ReportStageResult applies an externally reported stage status. Reporting the
// status a stage already has is a no-op.
func (s *Service) ReportStageResult(
	ctx context.Context,
	deploymentID, stageID uuid.UUID,
	to pipeline.Status,
	output string,
) (*pipeline.Stage, error) {
	unlock := s.locks.Lock(deploymentKey(deploymentID))
	defer unlock()

	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	stage, err := s.pipeline.Get(ctx, stageID)
	if errors.Is(err, pipeline.ErrNotFound) {
		return nil, fmt.Errorf("%w: stage %s", ErrNotFound, stageID)
	}
	if err != nil {
		return nil, err
	}
	if stage.DeploymentID != deploymentID {
		return nil, fmt.Errorf("%w: stage %s does not belong to deployment %s", ErrNotFound, stageID, deploymentID)
	}

	if stage.Status == to {
		return stage, nil
	}

	if deployment.Status != StatusInProgress {
		return nil, fmt.Errorf(
			"%w: deployment %s is %s, stages accept results only while in_progress",
			ErrInvalidTransition, deploymentID, deployment.Status,
		)
	}

	if to == pipeline.StatusRunning {
		if startErr := s.pipeline.CanStart(ctx, stage); startErr != nil {
			if errors.Is(startErr, pipeline.ErrGated) {
				return nil, fmt.Errorf("%w: stage %q", ErrApprovalRequired, stage.Name)
			}
			if errors.Is(startErr, pipeline.ErrNotReady) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, startErr)
			}
			return nil, startErr
		}
	}

	stage, err = s.pipeline.Apply(ctx, stageID, to, output)
	if errors.Is(err, pipeline.ErrInvalidTransition) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, err)
	}
	if err != nil {
		return nil, err
	}

	switch to {
	case pipeline.StatusFailed:
		if failErr := s.failDeployment(ctx, deployment, stage.CompletedAt); failErr != nil {
			return nil, failErr
		}
		s.auditAppend(ctx, nil, "deployment.fail", "deployment", deploymentID, map[string]string{
			"stage": stage.Name,
		})
	case pipeline.StatusCompleted:
		done, doneErr := s.pipeline.AllCompleted(ctx, deploymentID)
		if doneErr != nil {
			return nil, doneErr
		}
		if done {
			now := time.Now()
			if _, updErr := s.deployments.Update(ctx, deploymentID, func(d *Deployment) error {
				return d.Transition(StatusSucceeded, now)
			}); updErr != nil {
				return nil, updErr
			}

			deploymentsSucceeded.Inc()
			s.auditAppend(ctx, nil, "deployment.succeed", "deployment", deploymentID, nil)
			s.logger.Info("deployment succeeded", zap.String("deployment_id", deploymentID.String()))
		}
	case pipeline.StatusRunning, pipeline.StatusPending:
	}

	return stage, nil
}

// RecordApprovalDecision records the decision on a deployment's gated stage.
// Decisions land only while the gated stage is still pending, and are final.
func (s *Service) RecordApprovalDecision(
	ctx context.Context,
	deploymentID, approver uuid.UUID,
	decision Decision,
	comment string,
) (*Approval, error) {
	unlock := s.locks.Lock(deploymentKey(deploymentID))
	defer unlock()

	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	if deployment.Status != StatusInProgress {
		return nil, fmt.Errorf(
			"%w: deployment %s is %s, approvals are decided only while in_progress",
			ErrConflict, deploymentID, deployment.Status,
		)
	}

	pending, err := s.approvals.GetByDeployment(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, fmt.Errorf("%w: deployment %s", ErrApprovalNotFound, deploymentID)
	}
	approval := &pending[0]

	stage, err := s.stageByName(ctx, deploymentID, approval.StageName)
	if err != nil {
		return nil, err
	}
	if stage.Status != pipeline.StatusPending {
		return nil, fmt.Errorf(
			"%w: stage %q already %s",
			ErrConflict, stage.Name, stage.Status,
		)
	}

	now := time.Now()
	approval, err = s.approvals.Update(ctx, approval.ID, func(a *Approval) error {
		return a.Decide(approver, decision, comment, now)
	})
	if err != nil {
		return nil, err
	}

	switch decision {
	case DecisionRejected:
		if failErr := s.failDeployment(ctx, deployment, &now); failErr != nil {
			return nil, failErr
		}
		s.auditAppend(ctx, &approver, "deployment.reject", "deployment", deploymentID, map[string]string{
			"stage":   approval.StageName,
			"comment": comment,
		})
		s.logger.Info("deployment rejected",
			zap.String("deployment_id", deploymentID.String()),
			zap.String("approver", approver.String()),
		)
	case DecisionApproved:
		s.auditAppend(ctx, &approver, "deployment.approve", "deployment", deploymentID, map[string]string{
			"stage": approval.StageName,
		})
		s.logger.Info("deployment approved",
			zap.String("deployment_id", deploymentID.String()),
			zap.String("approver", approver.String()),
		)
	case DecisionPending:
	}

	return approval, nil
}

// ExecuteRollback reverts a failed deployment to the most recent stable
// release of the same service in the same environment. With force, an
// in_progress deployment is failed first.
func (s *Service) ExecuteRollback(
	ctx context.Context,
	deploymentID, initiator uuid.UUID,
	reason string,
	force bool,
) (*Rollback, error) {
	unlock := s.locks.Lock(deploymentKey(deploymentID))
	defer unlock()

	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	if deployment.Status == StatusInProgress && force {
		if failErr := s.failDeployment(ctx, deployment, nil); failErr != nil {
			return nil, failErr
		}
		deployment.Status = StatusFailed
	}

	if deployment.Status != StatusFailed {
		return nil, fmt.Errorf(
			"%w: deployment %s is %s, only failed deployments roll back",
			ErrInvalidTransition, deploymentID, deployment.Status,
		)
	}

	release, err := s.releases.Get(ctx, deployment.ReleaseID)
	if err != nil {
		return nil, err
	}

	before, ok := release.PromotedAt(deployment.EnvironmentID)
	if !ok {
		before = deployment.CreatedAt
	}

	target, err := s.releases.FindRollbackTarget(
		ctx, release.ServiceID, deployment.EnvironmentID, release.ID, before,
	)
	if errors.Is(err, releases.ErrNotFound) {
		return nil, fmt.Errorf("%w: service %s in environment %s", ErrNoStableRelease, release.ServiceID, deployment.EnvironmentID)
	}
	if err != nil {
		return nil, err
	}

	rollback, err := s.rollbacks.Create(ctx, &RollbackDraft{
		DeploymentID:    deploymentID,
		TargetReleaseID: target.ID,
		Initiator:       initiator,
		Reason:          reason,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, updErr := s.deployments.Update(ctx, deploymentID, func(d *Deployment) error {
		return d.Transition(StatusRolledBack, now)
	}); updErr != nil {
		s.markRollbackFailed(ctx, rollback.ID)
		return nil, updErr
	}

	// Skip the release flip when a prior attempt already rolled it back.
	if release.Status != releases.StatusRolledBack {
		if _, markErr := s.releases.MarkRolledBack(ctx, release.ID); markErr != nil {
			s.compensateRollback(ctx, deploymentID, rollback.ID)
			return nil, markErr
		}
	}

	finished, err := s.rollbacks.Update(ctx, rollback.ID, func(r *Rollback) error {
		r.Status = RollbackSucceeded
		r.CompletedAt = &now
		return nil
	})
	if err != nil {
		s.compensateRollback(ctx, deploymentID, rollback.ID)
		return nil, err
	}
	rollback = finished

	rollbacksExecuted.Inc()
	s.auditAppend(ctx, &initiator, "deployment.rollback", "deployment", deploymentID, map[string]string{
		"reason":            reason,
		"from_version":      release.Version,
		"to_version":        target.Version,
		"target_release_id": target.ID.String(),
	})

	s.logger.Info("deployment rolled back",
		zap.String("deployment_id", deploymentID.String()),
		zap.String("from_version", release.Version),
		zap.String("to_version", target.Version),
	)
	return rollback, nil
}

// Get retrieves a deployment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Deployment, error) {
	return s.deployments.GetByID(ctx, id)
}

// List retrieves all deployments.
func (s *Service) List(ctx context.Context) ([]Deployment, error) {
	return s.deployments.List(ctx)
}

// ListByRelease retrieves a release's deployments, most recent first.
func (s *Service) ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]Deployment, error) {
	return s.deployments.ListByRelease(ctx, releaseID)
}

// GetWithStages retrieves a deployment together with its ordered stages.
func (s *Service) GetWithStages(ctx context.Context, id uuid.UUID) (*DeploymentWithStages, error) {
	deployment, err := s.deployments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stages, err := s.pipeline.ListByDeployment(ctx, id)
	if err != nil {
		return nil, err
	}

	return &DeploymentWithStages{
		Deployment: *deployment,
		Stages:     stages,
	}, nil
}

// GetWithMetrics retrieves a deployment together with its stages and metrics.
func (s *Service) GetWithMetrics(ctx context.Context, id uuid.UUID) (*DeploymentWithMetrics, error) {
	withStages, err := s.GetWithStages(ctx, id)
	if err != nil {
		return nil, err
	}

	recorded, err := s.metrics.ListByDeployment(ctx, id)
	if err != nil {
		return nil, err
	}

	return &DeploymentWithMetrics{
		DeploymentWithStages: *withStages,
		Metrics:              recorded,
	}, nil
}

// NextRunnableStage returns the stage an executor should pick up next, if any.
// Used by external executors to poll for work.
func (s *Service) NextRunnableStage(ctx context.Context, deploymentID uuid.UUID) (*pipeline.Stage, bool, error) {
	if _, err := s.deployments.GetByID(ctx, deploymentID); err != nil {
		return nil, false, err
	}

	return s.pipeline.NextRunnable(ctx, deploymentID)
}

// GetApprovals retrieves a deployment's approvals.
func (s *Service) GetApprovals(ctx context.Context, deploymentID uuid.UUID) ([]Approval, error) {
	if _, err := s.deployments.GetByID(ctx, deploymentID); err != nil {
		return nil, err
	}

	return s.approvals.GetByDeployment(ctx, deploymentID)
}

// ListRollbacks retrieves a deployment's rollbacks, most recent first.
func (s *Service) ListRollbacks(ctx context.Context, deploymentID uuid.UUID) ([]Rollback, error) {
	if _, err := s.deployments.GetByID(ctx, deploymentID); err != nil {
		return nil, err
	}

	return s.rollbacks.ListByDeployment(ctx, deploymentID)
}

// resolveTarget validates the release and environment a deployment points at.
func (s *Service) resolveTarget(
	ctx context.Context,
	releaseID, environmentID uuid.UUID,
) (*releases.Release, *environments.Environment, error) {
	release, err := s.releases.Get(ctx, releaseID)
	if errors.Is(err, releases.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: release %s", ErrNotFound, releaseID)
	}
	if err != nil {
		return nil, nil, err
	}
	if release.Status == releases.StatusRolledBack {
		return nil, nil, fmt.Errorf("%w: release %s was rolled back", ErrConflict, releaseID)
	}

	environment, err := s.environments.Get(ctx, environmentID)
	if errors.Is(err, environments.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: environment %s", ErrNotFound, environmentID)
	}
	if err != nil {
		return nil, nil, err
	}
	if !environment.Active {
		return nil, nil, fmt.Errorf("%w: environment %q is inactive", ErrConflict, environment.Name)
	}

	return release, environment, nil
}

// failDeployment moves a deployment to failed and stamps completion on the
// stages that never ran.
func (s *Service) failDeployment(ctx context.Context, deployment *Deployment, at *time.Time) error {
	now := time.Now()
	if at != nil {
		now = *at
	}

	if _, err := s.deployments.Update(ctx, deployment.ID, func(d *Deployment) error {
		return d.Transition(StatusFailed, now)
	}); err != nil {
		return err
	}

	if err := s.pipeline.StampSkipped(ctx, deployment.ID, now); err != nil {
		return err
	}

	deploymentsFailed.Inc()
	s.logger.Info("deployment failed", zap.String("deployment_id", deployment.ID.String()))
	return nil
}

// unwindPromotion deletes whatever a half-finished promotion created.
func (s *Service) unwindPromotion(ctx context.Context, deploymentID uuid.UUID, withApprovals bool) {
	if withApprovals {
		if err := s.approvals.DeleteByDeployment(ctx, deploymentID); err != nil {
			s.logger.Error("failed to unwind approvals",
				zap.String("deployment_id", deploymentID.String()),
				zap.Error(err),
			)
		}
	}

	if err := s.pipeline.Discard(ctx, deploymentID); err != nil {
		s.logger.Error("failed to unwind pipeline",
			zap.String("deployment_id", deploymentID.String()),
			zap.Error(err),
		)
	}

	if err := s.deployments.Delete(ctx, deploymentID); err != nil {
		s.logger.Error("failed to unwind deployment",
			zap.String("deployment_id", deploymentID.String()),
			zap.Error(err),
		)
	}
}

// compensateRollback undoes a partially applied rollback: the deployment goes
// back to failed so the rollback can be re-invoked, and the rollback record is
// marked failed.
func (s *Service) compensateRollback(ctx context.Context, deploymentID, rollbackID uuid.UUID) {
	if _, err := s.deployments.Update(ctx, deploymentID, func(d *Deployment) error {
		d.Status = StatusFailed
		return nil
	}); err != nil {
		s.logger.Error("failed to revert deployment after rollback failure",
			zap.String("deployment_id", deploymentID.String()),
			zap.Error(err),
		)
	}

	s.markRollbackFailed(ctx, rollbackID)
}

func (s *Service) markRollbackFailed(ctx context.Context, id uuid.UUID) {
	if _, err := s.rollbacks.Update(ctx, id, func(r *Rollback) error {
		r.Status = RollbackFailed
		return nil
	}); err != nil {
		s.logger.Error("failed to mark rollback failed",
			zap.String("rollback_id", id.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) stageByName(ctx context.Context, deploymentID uuid.UUID, name string) (*pipeline.Stage, error) {
	stages, err := s.pipeline.ListByDeployment(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	for i := range stages {
		if stages[i].Name == name {
			return &stages[i], nil
		}
	}

	return nil, fmt.Errorf("%w: stage %q", ErrNotFound, name)
}

// auditAppend records the action once the transition it describes has been
// committed. Audit failures are logged, never propagated.
func (s *Service) auditAppend(
	ctx context.Context,
	userID *uuid.UUID,
	action, resourceType string,
	resourceID uuid.UUID,
	metadata map[string]string,
) {
	if _, err := s.audit.Append(ctx, userID, action, resourceType, resourceID, metadata); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
