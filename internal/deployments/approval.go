package deployments

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

type ApprovalDraft struct {
	// References
	DeploymentID uuid.UUID

	// StageName is the gated stage this approval blocks.
	StageName string
}

// Approval gates a deployment's progression past a named stage until a human
// decides. Decisions are immutable once recorded.
type Approval struct {
	ApprovalDraft

	Approver  *uuid.UUID
	Decision  Decision
	Comment   string
	DecidedAt *time.Time

	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decide records the decision. Re-deciding is rejected.
func (a *Approval) Decide(approver uuid.UUID, decision Decision, comment string, at time.Time) error {
	if decision != DecisionApproved && decision != DecisionRejected {
		return fmt.Errorf("%w: decision must be approved or rejected, got %q", ErrInvalidTransition, decision)
	}
	if a.Decision != DecisionPending {
		return fmt.Errorf("%w: approval for deployment %s already %s", ErrConflict, a.DeploymentID, a.Decision)
	}

	a.Approver = &approver
	a.Decision = decision
	a.Comment = comment
	a.DecidedAt = &at
	return nil
}
