package metrics

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/harborcd/harborcd/pkg/badgerfx"
)

type Repository struct {
	db    *badger.DB
	store *badgerfx.Repository[*metricModel]
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db:    db,
		store: badgerfx.NewRepository(func() *metricModel { return &metricModel{} }),
	}
}

// Create stores a new metric sample.
func (r *Repository) Create(_ context.Context, draft *MetricDraft) (*Metric, error) {
	model := newMetricModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		return r.store.Write(txn, model)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metric: %w", err)
	}

	return newMetric(model), nil
}

// ListByDeployment retrieves all samples of a deployment, oldest first.
func (r *Repository) ListByDeployment(_ context.Context, deploymentID uuid.UUID) ([]Metric, error) {
	var metrics []Metric

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 16

		models, err := r.store.ListByIndex(txn, prefixByDeployment+deploymentID.String()+":", opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			metrics = append(metrics, *newMetric(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}

	return metrics, nil
}
