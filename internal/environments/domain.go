package environments

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies an environment in the promotion path.
type Type string

const (
	TypeDevelopment Type = "development"
	TypeStaging     Type = "staging"
	TypeProduction  Type = "production"
)

type EnvironmentDraft struct {
	Name        string
	Type        Type
	Description string
}

type EnvironmentUpdate struct {
	EnvironmentDraft

	Active bool
}

// Environment is a deployment target (e.g. staging, production).
type Environment struct {
	EnvironmentUpdate

	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
