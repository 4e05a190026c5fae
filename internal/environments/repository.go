package environments

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
	store *badgerfx.Repository[*environmentModel]
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db:    db,
		store: badgerfx.NewRepository(func() *environmentModel { return &environmentModel{} }),
	}
}

// Create creates a new environment. Names are unique.
func (r *Repository) Create(_ context.Context, draft *EnvironmentDraft) (*Environment, error) {
	model := newEnvironmentModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, getErr := r.store.ReadByIndex(txn, prefixByName+model.Name); getErr == nil {
			return fmt.Errorf("%w: environment with name %q", ErrConflict, model.Name)
		} else if !errors.Is(getErr, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("failed to check name uniqueness: %w", getErr)
		}

		return r.store.Write(txn, model)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}

	return newEnvironment(model), nil
}

// GetByID retrieves an environment by its ID.
func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*Environment, error) {
	var model *environmentModel

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

	return newEnvironment(model), nil
}

// List retrieves all environments.
func (r *Repository) List(_ context.Context) ([]Environment, error) {
	var environments []Environment

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 16

		models, err := r.store.List(txn, prefixByID, opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			environments = append(environments, *newEnvironment(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}

	return environments, nil
}

func (r *Repository) get(txn *badger.Txn, id uuid.UUID) (*environmentModel, error) {
	model, err := r.store.Read(txn, prefixByID+id.String())
	if errors.Is(err, badgerfx.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}

	return model, nil
}
