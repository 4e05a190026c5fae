package environments

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequest represents the request payload for creating an environment.
type CreateRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=100"`
	Type        string `json:"type"        validate:"required,oneof=development staging production"`
	Description string `json:"description" validate:"max=500"`
}

// EnvironmentResponse represents the response payload for an environment.
type EnvironmentResponse struct {
	CreateRequest

	ID        uuid.UUID `json:"id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
