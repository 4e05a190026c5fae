package services

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequest represents the request payload for registering a service.
type CreateRequest struct {
	Name          string `json:"name"            validate:"required,min=1,max=100"`
	Description   string `json:"description"     validate:"max=500"`
	RepositoryURL string `json:"repository_url"  validate:"omitempty,url"`
	SlackChannel  string `json:"slack_channel"   validate:"max=100"`
}

// UpdateRequest represents the request payload for updating a service.
type UpdateRequest struct {
	Description   *string `json:"description,omitempty"    validate:"omitempty,max=500"`
	RepositoryURL *string `json:"repository_url,omitempty" validate:"omitempty,url"`
	SlackChannel  *string `json:"slack_channel,omitempty"  validate:"omitempty,max=100"`
	Active        *bool   `json:"active,omitempty"`
}

// ServiceResponse represents the response payload for a service.
type ServiceResponse struct {
	CreateRequest

	ID        uuid.UUID `json:"id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
