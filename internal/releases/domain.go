package releases

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft      Status = "draft"       // Release exists but was never promoted
	StatusPromoted   Status = "promoted"    // Release was promoted to at least one environment
	StatusRolledBack Status = "rolled_back" // Release was reverted by a rollback
)

// statusTransitions is the closed set of legal release status changes.
// A promoted release may be promoted again (to another environment).
var statusTransitions = map[Status][]Status{
	StatusDraft:      {StatusPromoted},
	StatusPromoted:   {StatusPromoted, StatusRolledBack},
	StatusRolledBack: {},
}

func (s Status) canTransitionTo(to Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type ReleaseDraft struct {
	// References
	ServiceID uuid.UUID

	// Release Details
	Version   string // Semantic version or build label, unique per service
	Notes     string
	GitCommit string

	// Metadata
	CreatedBy uuid.UUID
}

type Release struct {
	ReleaseDraft

	// Status
	Status Status

	// Promotions records when this release was promoted to each environment.
	// Rollback target selection is scoped per (service, environment).
	Promotions map[uuid.UUID]time.Time

	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkPromoted transitions the release to promoted and records the promotion
// time for the environment.
func (r *Release) MarkPromoted(environmentID uuid.UUID, promotedAt time.Time) error {
	if !r.Status.canTransitionTo(StatusPromoted) {
		return fmt.Errorf("%w: release %s is %s", ErrNotAllowed, r.ID, r.Status)
	}

	if r.Promotions == nil {
		r.Promotions = make(map[uuid.UUID]time.Time)
	}

	r.Status = StatusPromoted
	r.Promotions[environmentID] = promotedAt
	return nil
}

// MarkRolledBack transitions the release to rolled_back.
func (r *Release) MarkRolledBack() error {
	if !r.Status.canTransitionTo(StatusRolledBack) {
		return fmt.Errorf("%w: release %s is %s", ErrNotAllowed, r.ID, r.Status)
	}

	r.Status = StatusRolledBack
	return nil
}

// PromotedAt reports when the release was promoted to the environment.
func (r *Release) PromotedAt(environmentID uuid.UUID) (time.Time, bool) {
	at, ok := r.Promotions[environmentID]
	return at, ok
}
