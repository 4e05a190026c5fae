package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/harborcd/harborcd/pkg/badgerfx"
)

type stubGate struct {
	blocked map[string]bool
}

func (g *stubGate) Cleared(_ context.Context, _ uuid.UUID, stage string) (bool, error) {
	return !g.blocked[stage], nil
}

func newTestTracker(t *testing.T, gate GateChecker) *Tracker {
	t.Helper()

	db, err := badger.Open(badgerfx.Config{InMemory: true}.Build().WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if gate == nil {
		gate = &stubGate{}
	}

	return NewTracker(NewRepository(db), gate, Config{}, zaptest.NewLogger(t))
}

func TestTracker_Materialize(t *testing.T) {
	tracker := newTestTracker(t, nil)
	ctx := context.Background()
	deploymentID := uuid.Must(uuid.NewV7())

	stages, err := tracker.Materialize(ctx, deploymentID)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	if len(stages) != len(CanonicalStages) {
		t.Fatalf("expected %d stages, got %d", len(CanonicalStages), len(stages))
	}
	for i, stage := range stages {
		if stage.Name != CanonicalStages[i] {
			t.Errorf("stage %d: expected %q, got %q", i, CanonicalStages[i], stage.Name)
		}
		if stage.Order != i {
			t.Errorf("stage %q: expected order %d, got %d", stage.Name, i, stage.Order)
		}
		if stage.Status != StatusPending {
			t.Errorf("stage %q: expected pending, got %s", stage.Name, stage.Status)
		}
	}

	listed, err := tracker.ListByDeployment(ctx, deploymentID)
	if err != nil {
		t.Fatalf("ListByDeployment failed: %v", err)
	}
	if len(listed) != len(stages) {
		t.Fatalf("expected %d stages, got %d", len(stages), len(listed))
	}
	for i, stage := range listed {
		if stage.Order != i {
			t.Errorf("listing out of order at %d: got order %d", i, stage.Order)
		}
	}
}

func TestTracker_OrderingEnforced(t *testing.T) {
	tracker := newTestTracker(t, nil)
	ctx := context.Background()
	deploymentID := uuid.Must(uuid.NewV7())

	stages, err := tracker.Materialize(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}

	// The second stage cannot start while the first is pending.
	if err := tracker.CanStart(ctx, &stages[1]); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	if err := tracker.CanStart(ctx, &stages[0]); err != nil {
		t.Fatalf("first stage should be startable: %v", err)
	}

	if _, err := tracker.Apply(ctx, stages[0].ID, StatusRunning, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Apply(ctx, stages[0].ID, StatusCompleted, "ok"); err != nil {
		t.Fatal(err)
	}

	if err := tracker.CanStart(ctx, &stages[1]); err != nil {
		t.Fatalf("second stage should be startable after first completed: %v", err)
	}
}

func TestTracker_GateBlocksStage(t *testing.T) {
	gate := &stubGate{blocked: map[string]bool{"deploy": true}}
	tracker := newTestTracker(t, gate)
	ctx := context.Background()
	deploymentID := uuid.Must(uuid.NewV7())

	stages, err := tracker.Materialize(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}

	for _, stage := range stages[:3] {
		if _, err := tracker.Apply(ctx, stage.ID, StatusRunning, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := tracker.Apply(ctx, stage.ID, StatusCompleted, ""); err != nil {
			t.Fatal(err)
		}
	}

	deploy := &stages[3]
	if deploy.Name != "deploy" {
		t.Fatalf("expected stage 3 to be deploy, got %q", deploy.Name)
	}

	if err := tracker.CanStart(ctx, deploy); !errors.Is(err, ErrGated) {
		t.Fatalf("expected ErrGated, got %v", err)
	}

	gate.blocked["deploy"] = false
	if err := tracker.CanStart(ctx, deploy); err != nil {
		t.Fatalf("deploy should be startable after gate cleared: %v", err)
	}
}

func TestTracker_ApplyIdempotent(t *testing.T) {
	tracker := newTestTracker(t, nil)
	ctx := context.Background()
	deploymentID := uuid.Must(uuid.NewV7())

	stages, err := tracker.Materialize(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}

	first, err := tracker.Apply(ctx, stages[0].ID, StatusRunning, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}

	again, err := tracker.Apply(ctx, stages[0].ID, StatusRunning, "")
	if err != nil {
		t.Fatalf("re-applying the same status must be a no-op: %v", err)
	}
	if !again.StartedAt.Equal(*first.StartedAt) {
		t.Error("started_at changed on idempotent re-apply")
	}
}

func TestTracker_InvalidTransitions(t *testing.T) {
	tracker := newTestTracker(t, nil)
	ctx := context.Background()
	deploymentID := uuid.Must(uuid.NewV7())

	stages, err := tracker.Materialize(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}
	stageID := stages[0].ID

	// pending -> completed skips running
	if _, err := tracker.Apply(ctx, stageID, StatusCompleted, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := tracker.Apply(ctx, stageID, StatusRunning, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Apply(ctx, stageID, StatusFailed, "boom"); err != nil {
		t.Fatal(err)
	}

	// failed is terminal
	if _, err := tracker.Apply(ctx, stageID, StatusRunning, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition out of failed, got %v", err)
	}
}

func TestTracker_StampSkipped(t *testing.T) {
	tracker := newTestTracker(t, nil)
	ctx := context.Background()
	deploymentID := uuid.Must(uuid.NewV7())

	stages, err := tracker.Materialize(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tracker.Apply(ctx, stages[0].ID, StatusRunning, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Apply(ctx, stages[0].ID, StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Apply(ctx, stages[1].ID, StatusRunning, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Apply(ctx, stages[1].ID, StatusFailed, "tests broke"); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if err := tracker.StampSkipped(ctx, deploymentID, now); err != nil {
		t.Fatal(err)
	}

	listed, err := tracker.ListByDeployment(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}

	for _, stage := range listed[2:] {
		if stage.Status != StatusPending {
			t.Errorf("skipped stage %q: status must stay pending, got %s", stage.Name, stage.Status)
		}
		if stage.CompletedAt == nil {
			t.Errorf("skipped stage %q: expected completed_at stamped", stage.Name)
		}
	}

	// The completed and failed stages keep their original timestamps.
	if listed[0].CompletedAt == nil || listed[1].CompletedAt == nil {
		t.Fatal("finished stages must keep completed_at")
	}
}

func TestTracker_AllCompleted(t *testing.T) {
	tracker := newTestTracker(t, nil)
	ctx := context.Background()
	deploymentID := uuid.Must(uuid.NewV7())

	stages, err := tracker.Materialize(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}

	for i, stage := range stages {
		done, doneErr := tracker.AllCompleted(ctx, deploymentID)
		if doneErr != nil {
			t.Fatal(doneErr)
		}
		if done {
			t.Fatalf("pipeline reported complete with %d stages remaining", len(stages)-i)
		}

		if _, err := tracker.Apply(ctx, stage.ID, StatusRunning, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := tracker.Apply(ctx, stage.ID, StatusCompleted, ""); err != nil {
			t.Fatal(err)
		}
	}

	done, err := tracker.AllCompleted(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected pipeline to be complete")
	}
}

func TestTracker_NextRunnable(t *testing.T) {
	gate := &stubGate{blocked: map[string]bool{"deploy": true}}
	tracker := newTestTracker(t, gate)
	ctx := context.Background()
	deploymentID := uuid.Must(uuid.NewV7())

	stages, err := tracker.Materialize(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}

	next, ok, err := tracker.NextRunnable(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || next.Name != "build" {
		t.Fatalf("expected build to be runnable, got %v (ok=%v)", next, ok)
	}

	// Nothing is handed out while a stage is running.
	if _, err := tracker.Apply(ctx, stages[0].ID, StatusRunning, ""); err != nil {
		t.Fatal(err)
	}
	if _, ok, err = tracker.NextRunnable(ctx, deploymentID); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected no runnable stage while build is running")
	}

	if _, err := tracker.Apply(ctx, stages[0].ID, StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	next, ok, err = tracker.NextRunnable(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || next.Name != "test" {
		t.Fatalf("expected test to be the only runnable stage, got %v (ok=%v)", next, ok)
	}

	for _, stage := range stages[1:3] {
		if _, err := tracker.Apply(ctx, stage.ID, StatusRunning, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := tracker.Apply(ctx, stage.ID, StatusCompleted, ""); err != nil {
			t.Fatal(err)
		}
	}

	// The gated stage is next in order but not runnable until the gate clears.
	if _, ok, err = tracker.NextRunnable(ctx, deploymentID); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("expected no runnable stage while deploy is gated")
	}

	gate.blocked["deploy"] = false
	next, ok, err = tracker.NextRunnable(ctx, deploymentID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || next.Name != "deploy" {
		t.Fatalf("expected deploy to be runnable after the gate cleared, got %v (ok=%v)", next, ok)
	}
}
