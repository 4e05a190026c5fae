package environments

import (
	"encoding/json"

	"github.com/harborcd/harborcd/internal/storage"
)

const (
	prefix = "environment:"

	prefixByID   = prefix + "id:"
	prefixByName = prefix + "name:"
)

type environmentModel struct {
	storage.BaseEntity

	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

func newEnvironmentModel(draft *EnvironmentDraft) *environmentModel {
	if draft == nil {
		return nil
	}

	return &environmentModel{
		BaseEntity:  storage.NewBaseEntity(),
		Name:        draft.Name,
		Type:        draft.Type,
		Description: draft.Description,
		Active:      true,
	}
}

func newEnvironment(model *environmentModel) *Environment {
	if model == nil {
		return nil
	}

	return &Environment{
		EnvironmentUpdate: EnvironmentUpdate{
			EnvironmentDraft: EnvironmentDraft{
				Name:        model.Name,
				Type:        model.Type,
				Description: model.Description,
			},
			Active: model.Active,
		},
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func (m *environmentModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *environmentModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *environmentModel) StorageKey() string {
	return prefixByID + m.ID.String()
}

func (m *environmentModel) StorageIndexes() []string {
	return []string{
		prefixByName + m.Name,
	}
}
