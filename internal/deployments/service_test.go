package deployments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/harborcd/harborcd/internal/audit"
	"github.com/harborcd/harborcd/internal/environments"
	"github.com/harborcd/harborcd/internal/metrics"
	"github.com/harborcd/harborcd/internal/pipeline"
	"github.com/harborcd/harborcd/internal/releases"
	"github.com/harborcd/harborcd/internal/services"
	"github.com/harborcd/harborcd/pkg/badgerfx"
)

type fixture struct {
	orchestrator *Service
	releases     *releases.Service
	audit        *audit.Service
	pipeline     *pipeline.Tracker
	metricsRepo  *metrics.Repository

	serviceID     uuid.UUID
	environmentID uuid.UUID
	requester     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := badger.Open(badgerfx.Config{InMemory: true}.Build().WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	registry := services.NewRegistry(services.NewRepository(db), logger)
	environmentsSvc := environments.NewService(environments.NewRepository(db), logger)
	releasesSvc := releases.NewService(releases.NewRepository(db), registry, logger)
	auditSvc := audit.NewService(audit.NewRepository(db), logger)

	deploymentsRepo := NewRepository(db)
	approvalsRepo := NewApprovalRepository(db)
	rollbacksRepo := NewRollbackRepository(db)
	metricsRepo := metrics.NewRepository(db)

	tracker := pipeline.NewTracker(
		pipeline.NewRepository(db),
		NewApprovalGate(approvalsRepo),
		pipeline.Config{},
		logger,
	)

	orchestrator := NewService(
		Config{GatedStage: "deploy"},
		deploymentsRepo,
		approvalsRepo,
		rollbacksRepo,
		releasesSvc,
		environmentsSvc,
		tracker,
		metricsRepo,
		auditSvc,
		logger,
	)

	service, err := registry.Create(ctx, &services.ServiceDraft{Name: "checkout"})
	if err != nil {
		t.Fatal(err)
	}

	environment, err := environmentsSvc.Create(ctx, &environments.EnvironmentDraft{
		Name: "production",
		Type: environments.TypeProduction,
	})
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{
		orchestrator: orchestrator,
		releases:     releasesSvc,
		audit:        auditSvc,
		pipeline:     tracker,
		metricsRepo:  metricsRepo,

		serviceID:     service.ID,
		environmentID: environment.ID,
		requester:     uuid.Must(uuid.NewV7()),
	}
}

func (f *fixture) cutRelease(t *testing.T, version string) *releases.Release {
	t.Helper()

	release, err := f.releases.Create(context.Background(), &releases.ReleaseDraft{
		ServiceID: f.serviceID,
		Version:   version,
		CreatedBy: f.requester,
	})
	if err != nil {
		t.Fatal(err)
	}
	return release
}

func (f *fixture) promote(t *testing.T, releaseID uuid.UUID) *Deployment {
	t.Helper()

	deployment, err := f.orchestrator.PromoteRelease(
		context.Background(), releaseID, f.environmentID, f.requester,
	)
	if err != nil {
		t.Fatal(err)
	}
	return deployment
}

func (f *fixture) stages(t *testing.T, deploymentID uuid.UUID) []pipeline.Stage {
	t.Helper()

	stages, err := f.pipeline.ListByDeployment(context.Background(), deploymentID)
	if err != nil {
		t.Fatal(err)
	}
	return stages
}

func (f *fixture) report(t *testing.T, deploymentID, stageID uuid.UUID, to pipeline.Status) *pipeline.Stage {
	t.Helper()

	stage, err := f.orchestrator.ReportStageResult(context.Background(), deploymentID, stageID, to, "")
	if err != nil {
		t.Fatal(err)
	}
	return stage
}

func (f *fixture) runStage(t *testing.T, deploymentID, stageID uuid.UUID) {
	t.Helper()
	f.report(t, deploymentID, stageID, pipeline.StatusRunning)
	f.report(t, deploymentID, stageID, pipeline.StatusCompleted)
}

func (f *fixture) approve(t *testing.T, deploymentID uuid.UUID) {
	t.Helper()

	if _, err := f.orchestrator.RecordApprovalDecision(
		context.Background(), deploymentID, f.requester, DecisionApproved, "",
	); err != nil {
		t.Fatal(err)
	}
}

func TestPromoteRelease_FullPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)

	if deployment.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", deployment.Status)
	}
	if deployment.StartedAt == nil {
		t.Fatal("expected started_at set")
	}

	promoted, err := f.releases.Get(ctx, release.ID)
	if err != nil {
		t.Fatal(err)
	}
	if promoted.Status != releases.StatusPromoted {
		t.Fatalf("expected release promoted, got %s", promoted.Status)
	}
	if _, ok := promoted.PromotedAt(f.environmentID); !ok {
		t.Fatal("expected promotion timestamp for environment")
	}

	stages := f.stages(t, deployment.ID)
	if len(stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(stages))
	}

	// build, test, security_scan run freely
	for _, stage := range stages[:3] {
		f.runStage(t, deployment.ID, stage.ID)
	}

	// deploy is gated
	_, err = f.orchestrator.ReportStageResult(ctx, deployment.ID, stages[3].ID, pipeline.StatusRunning, "")
	if !errors.Is(err, ErrApprovalRequired) {
		t.Fatalf("expected ErrApprovalRequired, got %v", err)
	}

	f.approve(t, deployment.ID)
	f.runStage(t, deployment.ID, stages[3].ID)
	f.runStage(t, deployment.ID, stages[4].ID)

	final, err := f.orchestrator.Get(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", final.Status)
	}
	if final.CompletedAt == nil {
		t.Fatal("expected completed_at set")
	}
}

func TestCreateDeployment_ActiveConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")

	if _, err := f.orchestrator.CreateDeployment(ctx, release.ID, f.environmentID, f.requester); err != nil {
		t.Fatal(err)
	}

	_, err := f.orchestrator.CreateDeployment(ctx, release.ID, f.environmentID, f.requester)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateDeployment_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")

	_, err := f.orchestrator.CreateDeployment(ctx, uuid.Must(uuid.NewV7()), f.environmentID, f.requester)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown release, got %v", err)
	}

	_, err = f.orchestrator.CreateDeployment(ctx, release.ID, uuid.Must(uuid.NewV7()), f.requester)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown environment, got %v", err)
	}
}

func TestCreateDeployment_ConcurrentSinglePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")

	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := f.orchestrator.CreateDeployment(ctx, release.ID, f.environmentID, f.requester)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly 1 deployment created, got %d (%d conflicts)", succeeded, conflicts)
	}
}

func TestReportStageResult_Idempotent(t *testing.T) {
	f := newFixture(t)

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)
	stages := f.stages(t, deployment.ID)

	first := f.report(t, deployment.ID, stages[0].ID, pipeline.StatusRunning)
	again := f.report(t, deployment.ID, stages[0].ID, pipeline.StatusRunning)

	if !again.StartedAt.Equal(*first.StartedAt) {
		t.Fatal("idempotent re-report must not change started_at")
	}
}

func TestReportStageResult_OutOfOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)
	stages := f.stages(t, deployment.ID)

	_, err := f.orchestrator.ReportStageResult(ctx, deployment.ID, stages[1].ID, pipeline.StatusRunning, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReportStageResult_FailureStampsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)
	stages := f.stages(t, deployment.ID)

	f.runStage(t, deployment.ID, stages[0].ID)
	f.report(t, deployment.ID, stages[1].ID, pipeline.StatusRunning)
	f.report(t, deployment.ID, stages[1].ID, pipeline.StatusFailed)

	failed, err := f.orchestrator.Get(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}

	for _, stage := range f.stages(t, deployment.ID)[2:] {
		if stage.Status != pipeline.StatusPending {
			t.Errorf("skipped stage %q: status must stay pending, got %s", stage.Name, stage.Status)
		}
		if stage.CompletedAt == nil {
			t.Errorf("skipped stage %q: expected completed_at stamped", stage.Name)
		}
	}

	// failed is semi-terminal: it still occupies the (release, environment) pair.
	_, err = f.orchestrator.CreateDeployment(ctx, release.ID, f.environmentID, f.requester)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("failed deployment must still block the pair, got %v", err)
	}

	// And it accepts no further stage results.
	_, err = f.orchestrator.ReportStageResult(ctx, deployment.ID, stages[2].ID, pipeline.StatusRunning, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after failure, got %v", err)
	}
}

func TestRecordApprovalDecision_Rejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)
	stages := f.stages(t, deployment.ID)

	for _, stage := range stages[:3] {
		f.runStage(t, deployment.ID, stage.ID)
	}

	approval, err := f.orchestrator.RecordApprovalDecision(
		ctx, deployment.ID, f.requester, DecisionRejected, "not during the incident",
	)
	if err != nil {
		t.Fatal(err)
	}
	if approval.Decision != DecisionRejected {
		t.Fatalf("expected rejected, got %s", approval.Decision)
	}
	if approval.DecidedAt == nil {
		t.Fatal("expected decided_at set")
	}

	rejected, err := f.orchestrator.Get(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != StatusFailed {
		t.Fatalf("expected deployment failed after rejection, got %s", rejected.Status)
	}

	// The decision is final.
	_, err = f.orchestrator.RecordApprovalDecision(ctx, deployment.ID, f.requester, DecisionApproved, "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on re-decide, got %v", err)
	}
}

func TestRecordApprovalDecision_AfterStageStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)
	stages := f.stages(t, deployment.ID)

	for _, stage := range stages[:3] {
		f.runStage(t, deployment.ID, stage.ID)
	}
	f.approve(t, deployment.ID)
	f.report(t, deployment.ID, stages[3].ID, pipeline.StatusRunning)

	// Too late: the gated stage is already running. The approval itself is
	// also already decided, either check must reject with a conflict.
	_, err := f.orchestrator.RecordApprovalDecision(ctx, deployment.ID, f.requester, DecisionRejected, "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestExecuteRollback_SelectsPreviousStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	failStages := func(deployment *Deployment) {
		stages := f.stages(t, deployment.ID)
		f.report(t, deployment.ID, stages[0].ID, pipeline.StatusRunning)
		f.report(t, deployment.ID, stages[0].ID, pipeline.StatusFailed)
	}
	succeed := func(deployment *Deployment) {
		stages := f.stages(t, deployment.ID)
		for i, stage := range stages {
			if i == 3 {
				f.approve(t, deployment.ID)
			}
			f.runStage(t, deployment.ID, stage.ID)
		}
	}

	r1 := f.cutRelease(t, "1.0.0")
	succeed(f.promote(t, r1.ID))

	r2 := f.cutRelease(t, "1.1.0")
	succeed(f.promote(t, r2.ID))

	r3 := f.cutRelease(t, "2.0.0")
	deployment := f.promote(t, r3.ID)
	failStages(deployment)

	rollback, err := f.orchestrator.ExecuteRollback(ctx, deployment.ID, f.requester, "smoke failed", false)
	if err != nil {
		t.Fatal(err)
	}

	// Most recent stable wins: r2, not r1.
	if rollback.TargetReleaseID != r2.ID {
		t.Fatalf("expected target %s (1.1.0), got %s", r2.ID, rollback.TargetReleaseID)
	}
	if rollback.Status != RollbackSucceeded {
		t.Fatalf("expected rollback succeeded, got %s", rollback.Status)
	}
	if rollback.CompletedAt == nil {
		t.Fatal("expected completed_at set")
	}

	rolledBack, err := f.orchestrator.Get(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rolledBack.Status != StatusRolledBack {
		t.Fatalf("expected deployment rolled_back, got %s", rolledBack.Status)
	}

	failedRelease, err := f.releases.Get(ctx, r3.ID)
	if err != nil {
		t.Fatal(err)
	}
	if failedRelease.Status != releases.StatusRolledBack {
		t.Fatalf("expected release rolled_back, got %s", failedRelease.Status)
	}

	// The target release is untouched.
	target, err := f.releases.Get(ctx, r2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if target.Status != releases.StatusPromoted {
		t.Fatalf("target release must stay promoted, got %s", target.Status)
	}

	// rolled_back is terminal.
	_, err = f.orchestrator.ExecuteRollback(ctx, deployment.ID, f.requester, "again", false)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestExecuteRollback_NoStableRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)

	stages := f.stages(t, deployment.ID)
	f.report(t, deployment.ID, stages[0].ID, pipeline.StatusRunning)
	f.report(t, deployment.ID, stages[0].ID, pipeline.StatusFailed)

	_, err := f.orchestrator.ExecuteRollback(ctx, deployment.ID, f.requester, "nothing to fall back to", false)
	if !errors.Is(err, ErrNoStableRelease) {
		t.Fatalf("expected ErrNoStableRelease, got %v", err)
	}

	// The deployment stays failed so the operator can retry later.
	failed, err := f.orchestrator.Get(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
}

func TestExecuteRollback_ForceAbortsInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1 := f.cutRelease(t, "1.0.0")
	first := f.promote(t, r1.ID)
	for i, stage := range f.stages(t, first.ID) {
		if i == 3 {
			f.approve(t, first.ID)
		}
		f.runStage(t, first.ID, stage.ID)
	}

	r2 := f.cutRelease(t, "1.1.0")
	deployment := f.promote(t, r2.ID)

	// Without force an in_progress deployment cannot roll back.
	_, err := f.orchestrator.ExecuteRollback(ctx, deployment.ID, f.requester, "abort", false)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	rollback, err := f.orchestrator.ExecuteRollback(ctx, deployment.ID, f.requester, "abort", true)
	if err != nil {
		t.Fatal(err)
	}
	if rollback.TargetReleaseID != r1.ID {
		t.Fatalf("expected target %s, got %s", r1.ID, rollback.TargetReleaseID)
	}
}

func TestPromoteThenRollback_AuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1 := f.cutRelease(t, "1.0.0")
	first := f.promote(t, r1.ID)
	for i, stage := range f.stages(t, first.ID) {
		if i == 3 {
			f.approve(t, first.ID)
		}
		f.runStage(t, first.ID, stage.ID)
	}

	r2 := f.cutRelease(t, "1.1.0")
	deployment := f.promote(t, r2.ID)
	stages := f.stages(t, deployment.ID)
	f.report(t, deployment.ID, stages[0].ID, pipeline.StatusRunning)
	f.report(t, deployment.ID, stages[0].ID, pipeline.StatusFailed)

	if _, err := f.orchestrator.ExecuteRollback(ctx, deployment.ID, f.requester, "build broke", false); err != nil {
		t.Fatal(err)
	}

	entries, err := f.audit.List(ctx, audit.Filter{ResourceID: &deployment.ID})
	if err != nil {
		t.Fatal(err)
	}

	actions := make(map[string]int, len(entries))
	for _, entry := range entries {
		actions[entry.Action]++
	}
	for _, expected := range []string{"deployment.create", "deployment.fail", "deployment.rollback"} {
		if actions[expected] == 0 {
			t.Errorf("expected audit action %q, got %v", expected, actions)
		}
	}
	if actions["deployment.create"] != 1 {
		t.Errorf("expected exactly 1 deployment.create entry, got %d", actions["deployment.create"])
	}

	rollbackEntries, err := f.audit.List(ctx, audit.Filter{Action: "deployment.rollback"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rollbackEntries) != 1 {
		t.Fatalf("expected 1 rollback entry, got %d", len(rollbackEntries))
	}
	metadata := rollbackEntries[0].Metadata
	if metadata["reason"] != "build broke" {
		t.Errorf("expected reason metadata, got %q", metadata["reason"])
	}
	if metadata["from_version"] != "1.1.0" || metadata["to_version"] != "1.0.0" {
		t.Errorf("unexpected version metadata: %v", metadata)
	}
}

func TestGetWithStagesAndMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)

	metricsSvc := metrics.NewService(f.metricsRepo, NewDeploymentChecker(f.orchestrator.deployments), zaptest.NewLogger(t))

	if _, err := metricsSvc.RecordMetric(ctx, deployment.ID, "deploy_duration", 42.5, "seconds"); err != nil {
		t.Fatal(err)
	}

	detail, err := f.orchestrator.GetWithMetrics(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(detail.Stages))
	}
	if len(detail.Metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(detail.Metrics))
	}
	if detail.Metrics[0].Name != "deploy_duration" {
		t.Fatalf("unexpected metric: %+v", detail.Metrics[0])
	}

	// Metrics for a deployment that does not exist are rejected.
	_, err = metricsSvc.RecordMetric(ctx, uuid.Must(uuid.NewV7()), "deploy_duration", 1, "seconds")
	if !errors.Is(err, metrics.ErrNotFound) {
		t.Fatalf("expected metrics.ErrNotFound, got %v", err)
	}
}

func TestNextRunnableStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.orchestrator.NextRunnableStage(ctx, uuid.Must(uuid.NewV7())); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown deployment, got %v", err)
	}

	release := f.cutRelease(t, "1.0.0")
	deployment := f.promote(t, release.ID)
	stages := f.stages(t, deployment.ID)

	next, ok, err := f.orchestrator.NextRunnableStage(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || next.Name != "build" {
		t.Fatalf("expected build to be runnable, got %v (ok=%v)", next, ok)
	}

	f.runStage(t, deployment.ID, stages[0].ID)

	next, ok, err = f.orchestrator.NextRunnableStage(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || next.Name != "test" {
		t.Fatalf("expected test to be the only runnable stage, got %v (ok=%v)", next, ok)
	}

	f.runStage(t, deployment.ID, stages[1].ID)
	f.runStage(t, deployment.ID, stages[2].ID)

	// The gated deploy stage stays unrunnable until its approval is granted.
	if _, ok, err = f.orchestrator.NextRunnableStage(ctx, deployment.ID); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected no runnable stage while the approval is pending")
	}

	f.approve(t, deployment.ID)

	next, ok, err = f.orchestrator.NextRunnableStage(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || next.Name != "deploy" {
		t.Fatalf("expected deploy to be runnable after approval, got %v (ok=%v)", next, ok)
	}
}

func TestExecuteRollback_CompensationRestoresFailedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1 := f.cutRelease(t, "1.0.0")
	first := f.promote(t, r1.ID)
	for i, stage := range f.stages(t, first.ID) {
		if i == 3 {
			f.approve(t, first.ID)
		}
		f.runStage(t, first.ID, stage.ID)
	}

	r2 := f.cutRelease(t, "1.1.0")
	deployment := f.promote(t, r2.ID)
	stages := f.stages(t, deployment.ID)
	f.report(t, deployment.ID, stages[0].ID, pipeline.StatusRunning)
	f.report(t, deployment.ID, stages[0].ID, pipeline.StatusFailed)

	// Simulate a rollback interrupted after moving the deployment but before
	// its own record could be finalized.
	rollback, err := f.orchestrator.rollbacks.Create(ctx, &RollbackDraft{
		DeploymentID:    deployment.ID,
		TargetReleaseID: r1.ID,
		Initiator:       f.requester,
		Reason:          "build broke",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.orchestrator.deployments.Update(ctx, deployment.ID, func(d *Deployment) error {
		return d.Transition(StatusRolledBack, time.Now())
	}); err != nil {
		t.Fatal(err)
	}

	f.orchestrator.compensateRollback(ctx, deployment.ID, rollback.ID)

	got, err := f.orchestrator.Get(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected deployment back in failed, got %s", got.Status)
	}

	compensated, err := f.orchestrator.rollbacks.GetByID(ctx, rollback.ID)
	if err != nil {
		t.Fatal(err)
	}
	if compensated.Status != RollbackFailed {
		t.Fatalf("expected rollback marked failed, got %s", compensated.Status)
	}

	// Re-invocation succeeds even when a prior attempt already flipped the
	// release to rolled_back.
	if _, err := f.releases.MarkRolledBack(ctx, r2.ID); err != nil {
		t.Fatal(err)
	}

	retried, err := f.orchestrator.ExecuteRollback(ctx, deployment.ID, f.requester, "build broke", false)
	if err != nil {
		t.Fatal(err)
	}
	if retried.Status != RollbackSucceeded {
		t.Fatalf("expected retried rollback to succeed, got %s", retried.Status)
	}
	if retried.TargetReleaseID != r1.ID {
		t.Fatalf("expected target %s, got %s", r1.ID, retried.TargetReleaseID)
	}

	got, err = f.orchestrator.Get(ctx, deployment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusRolledBack {
		t.Fatalf("expected deployment rolled_back after retry, got %s", got.Status)
	}
}
