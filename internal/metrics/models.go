package metrics

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/harborcd/harborcd/internal/storage"
)

const (
	prefix = "metric:"

	prefixByID         = prefix + "id:"
	prefixByDeployment = prefix + "deployment:"
)

type metricModel struct {
	storage.BaseEntity

	DeploymentID uuid.UUID `json:"deployment_id"`
	Name         string    `json:"name"`
	Value        float64   `json:"value"`
	Unit         string    `json:"unit"`
}

func newMetricModel(draft *MetricDraft) *metricModel {
	if draft == nil {
		return nil
	}

	return &metricModel{
		BaseEntity:   storage.NewBaseEntity(),
		DeploymentID: draft.DeploymentID,
		Name:         draft.Name,
		Value:        draft.Value,
		Unit:         draft.Unit,
	}
}

func newMetric(model *metricModel) *Metric {
	if model == nil {
		return nil
	}

	return &Metric{
		MetricDraft: MetricDraft{
			DeploymentID: model.DeploymentID,
			Name:         model.Name,
			Value:        model.Value,
			Unit:         model.Unit,
		},
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
	}
}

func (m *metricModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *metricModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *metricModel) StorageKey() string {
	return prefixByID + m.ID.String()
}

func (m *metricModel) StorageIndexes() []string {
	return []string{
		// `metric:deployment:<deployment_id>:<unix_nano>:<id>` for chronological listing
		prefixByDeployment + m.DeploymentID.String() + ":" +
			strconv.FormatInt(m.CreatedAt.UnixNano(), 10) + ":" + m.ID.String(),
	}
}
