package services

import (
	"encoding/json"

	"github.com/harborcd/harborcd/internal/storage"
)

const (
	prefix = "service:"

	prefixByID   = prefix + "id:"
	prefixByName = prefix + "name:"
)

type serviceModel struct {
	storage.BaseEntity

	Name          string `json:"name"`
	Description   string `json:"description"`
	RepositoryURL string `json:"repository_url"`
	SlackChannel  string `json:"slack_channel,omitempty"`
	Active        bool   `json:"active"`
}

func newServiceModel(draft *ServiceDraft) *serviceModel {
	if draft == nil {
		return nil
	}

	return &serviceModel{
		BaseEntity:    storage.NewBaseEntity(),
		Name:          draft.Name,
		Description:   draft.Description,
		RepositoryURL: draft.RepositoryURL,
		SlackChannel:  draft.SlackChannel,
		Active:        true,
	}
}

func newService(model *serviceModel) *Service {
	if model == nil {
		return nil
	}

	return &Service{
		ServiceUpdate: ServiceUpdate{
			ServiceDraft: ServiceDraft{
				Name:          model.Name,
				Description:   model.Description,
				RepositoryURL: model.RepositoryURL,
				SlackChannel:  model.SlackChannel,
			},
			Active: model.Active,
		},
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func (m *serviceModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *serviceModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *serviceModel) StorageKey() string {
	return prefixByID + m.ID.String()
}

func (m *serviceModel) StorageIndexes() []string {
	return []string{
		prefixByName + m.Name,
	}
}
