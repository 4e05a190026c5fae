package services

import (
	"time"

	"github.com/google/uuid"
)

// ServiceDraft describes a deployable service being registered.
type ServiceDraft struct {
	// Basic Information
	Name        string
	Description string

	// Source
	RepositoryURL string

	// Notifications
	SlackChannel string
}

type ServiceUpdate struct {
	ServiceDraft

	Active bool
}

// Service is a deployable application releases are cut for.
type Service struct {
	ServiceUpdate

	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
