package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/harborcd/harborcd/pkg/badgerfx"
)

type Repository struct {
	db    *badger.DB
	store *badgerfx.Repository[*stageModel]
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db:    db,
		store: badgerfx.NewRepository(func() *stageModel { return &stageModel{} }),
	}
}

// CreateBatch stores all stages of a deployment in a single transaction.
func (r *Repository) CreateBatch(_ context.Context, drafts []StageDraft) ([]Stage, error) {
	models := make([]*stageModel, len(drafts))
	for i := range drafts {
		models[i] = newStageModel(&drafts[i])
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		for _, model := range models {
			if writeErr := r.store.Write(txn, model); writeErr != nil {
				return writeErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stages: %w", err)
	}

	stages := make([]Stage, len(models))
	for i, model := range models {
		stages[i] = *newStage(model)
	}

	return stages, nil
}

// GetByID retrieves a stage by its ID.
func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*Stage, error) {
	var model *stageModel

	err := r.db.View(func(txn *badger.Txn) error {
		found, err := r.get(txn, id)
		if err != nil {
			return err
		}

		model = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return newStage(model), nil
}

// ListByDeployment retrieves a deployment's stages in execution order.
func (r *Repository) ListByDeployment(_ context.Context, deploymentID uuid.UUID) ([]Stage, error) {
	var stages []Stage

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 8

		models, err := r.store.ListByIndex(txn, prefixByDeployment+deploymentID.String()+":", opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			stages = append(stages, *newStage(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}

	return stages, nil
}

// Update updates an existing stage.
func (r *Repository) Update(_ context.Context, id uuid.UUID, updater func(*Stage) error) (*Stage, error) {
	var updated *stageModel

	err := r.db.Update(func(txn *badger.Txn) error {
		old, err := r.get(txn, id)
		if err != nil {
			return err
		}

		stage := newStage(old)
		if updErr := updater(stage); updErr != nil {
			return updErr
		}

		updated = newStageUpdateModel(old, stage)

		return r.store.Replace(txn, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return newStage(updated), nil
}

// UpdateByDeployment applies the updater to every stage of a deployment in a
// single transaction. Stages for which the updater returns false are skipped.
func (r *Repository) UpdateByDeployment(
	_ context.Context,
	deploymentID uuid.UUID,
	updater func(*Stage) bool,
) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 8

		models, err := r.store.ListByIndex(txn, prefixByDeployment+deploymentID.String()+":", opts)
		if err != nil {
			return err
		}

		for _, old := range models {
			stage := newStage(old)
			if !updater(stage) {
				continue
			}

			if writeErr := r.store.Replace(txn, old, newStageUpdateModel(old, stage)); writeErr != nil {
				return writeErr
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update stages: %w", err)
	}

	return nil
}

// DeleteByDeployment removes all stages of a deployment. Used only to
// compensate a failed promotion; deployments are otherwise retained.
func (r *Repository) DeleteByDeployment(_ context.Context, deploymentID uuid.UUID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 8

		models, err := r.store.ListByIndex(txn, prefixByDeployment+deploymentID.String()+":", opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			if delErr := r.store.Delete(txn, model); delErr != nil {
				return delErr
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete stages: %w", err)
	}

	return nil
}

func (r *Repository) get(txn *badger.Txn, id uuid.UUID) (*stageModel, error) {
	model, err := r.store.Read(txn, prefixByID+id.String())
	if errors.Is(err, badgerfx.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}

	return model, nil
}
