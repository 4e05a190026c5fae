package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harborcd/harborcd/internal/storage"
)

const (
	prefix = "stage:"

	prefixByID         = prefix + "id:"
	prefixByDeployment = prefix + "deployment:"
)

type stageModel struct {
	storage.BaseEntity

	// References
	DeploymentID uuid.UUID `json:"deployment_id"`

	// Stage Details
	Name           string `json:"name"`
	Order          int    `json:"order"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	// Status
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Output      string     `json:"output,omitempty"`
}

func newStageModel(draft *StageDraft) *stageModel {
	if draft == nil {
		return nil
	}

	return &stageModel{
		BaseEntity:     storage.NewBaseEntity(),
		DeploymentID:   draft.DeploymentID,
		Name:           draft.Name,
		Order:          draft.Order,
		TimeoutSeconds: draft.TimeoutSeconds,
		Status:         StatusPending,
	}
}

func newStage(model *stageModel) *Stage {
	if model == nil {
		return nil
	}

	return &Stage{
		StageDraft: StageDraft{
			DeploymentID:   model.DeploymentID,
			Name:           model.Name,
			Order:          model.Order,
			TimeoutSeconds: model.TimeoutSeconds,
		},
		Status:      model.Status,
		StartedAt:   model.StartedAt,
		CompletedAt: model.CompletedAt,
		Output:      model.Output,
		ID:          model.ID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func newStageUpdateModel(old *stageModel, stage *Stage) *stageModel {
	updated := newStageModel(&stage.StageDraft)
	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt
	updated.UpdatedAt = time.Now()
	updated.Status = stage.Status
	updated.StartedAt = stage.StartedAt
	updated.CompletedAt = stage.CompletedAt
	updated.Output = stage.Output

	return updated
}

func (m *stageModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *stageModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *stageModel) StorageKey() string {
	return prefixByID + m.ID.String()
}

func (m *stageModel) StorageIndexes() []string {
	return []string{
		// `stage:deployment:<deployment_id>:<order>` keeps stages sorted by order
		fmt.Sprintf("%s%s:%03d", prefixByDeployment, m.DeploymentID.String(), m.Order),
	}
}
