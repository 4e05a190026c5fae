package audit

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/harborcd/harborcd/internal/storage"
)

const (
	prefix = "audit:"

	prefixByID   = prefix + "id:"
	prefixByTime = prefix + "ts:"
)

// entryModel represents a stored audit log entry.
type entryModel struct {
	storage.BaseEntity

	UserID       *uuid.UUID        `json:"user_id"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   uuid.UUID         `json:"resource_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
}

func newEntryModel(draft *EntryDraft) *entryModel {
	if draft == nil {
		return nil
	}

	return &entryModel{
		BaseEntity:   storage.NewBaseEntity(),
		UserID:       draft.UserID,
		Action:       draft.Action,
		ResourceType: draft.ResourceType,
		ResourceID:   draft.ResourceID,
		Metadata:     draft.Metadata,
		IPAddress:    draft.IPAddress,
		UserAgent:    draft.UserAgent,
	}
}

func newEntry(model *entryModel) *Entry {
	if model == nil {
		return nil
	}

	return &Entry{
		EntryDraft: EntryDraft{
			UserID:       model.UserID,
			Action:       model.Action,
			ResourceType: model.ResourceType,
			ResourceID:   model.ResourceID,
			Metadata:     model.Metadata,
			IPAddress:    model.IPAddress,
			UserAgent:    model.UserAgent,
		},
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
	}
}

func (m *entryModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *entryModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *entryModel) StorageKey() string {
	return prefixByID + m.ID.String()
}

func (m *entryModel) StorageIndexes() []string {
	return []string{
		// `audit:ts:<unix_nano>:<id>` for reverse-chronological listing
		prefixByTime + strconv.FormatInt(m.CreatedAt.UnixNano(), 10) + ":" + m.ID.String(),
	}
}
