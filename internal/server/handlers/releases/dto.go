package releases

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequest represents the request payload for cutting a release.
type CreateRequest struct {
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
	Version   string    `json:"version"    validate:"required,min=1,max=100"`
	Notes     string    `json:"notes"      validate:"max=2000"`
	GitCommit string    `json:"git_commit" validate:"max=64"`
	CreatedBy uuid.UUID `json:"created_by" validate:"required"`
}

// PromoteRequest represents the request payload for promoting a release.
type PromoteRequest struct {
	EnvironmentID uuid.UUID `json:"environment_id" validate:"required"`
	Requester     uuid.UUID `json:"requester"      validate:"required"`
}

// ReleaseResponse represents the response payload for a release.
type ReleaseResponse struct {
	CreateRequest

	ID         uuid.UUID            `json:"id"`
	Status     string               `json:"status"`
	Promotions map[string]time.Time `json:"promotions,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}
