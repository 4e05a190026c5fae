package audit

import (
	"time"

	"github.com/google/uuid"
)

// EntryDraft carries everything a caller knows about an action at append time.
type EntryDraft struct {
	// Actor
	UserID *uuid.UUID // nil for system-initiated actions

	// What happened
	Action       string // e.g. "deployment.create", "deployment.rollback"
	ResourceType string // e.g. "deployment", "release"
	ResourceID   uuid.UUID

	// Context
	Metadata  map[string]string
	IPAddress string
	UserAgent string
}

type Entry struct {
	EntryDraft

	ID        uuid.UUID
	CreatedAt time.Time
}

// Filter narrows List and ExportCSV results. Zero values match everything.
type Filter struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Since        *time.Time
	Until        *time.Time

	Limit  int
	Offset int
}

func (f Filter) matches(entry *Entry) bool {
	if f.UserID != nil && (entry.UserID == nil || *entry.UserID != *f.UserID) {
		return false
	}
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if f.ResourceType != "" && entry.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != nil && entry.ResourceID != *f.ResourceID {
		return false
	}
	if f.Since != nil && entry.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && entry.CreatedAt.After(*f.Until) {
		return false
	}
	return true
}
