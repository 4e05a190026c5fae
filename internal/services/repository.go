package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/harborcd/harborcd/pkg/badgerfx"
)

type Repository struct {
	db    *badger.DB
	store *badgerfx.Repository[*serviceModel]
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db:    db,
		store: badgerfx.NewRepository(func() *serviceModel { return &serviceModel{} }),
	}
}

// Create creates a new service. Names are unique.
func (r *Repository) Create(_ context.Context, draft *ServiceDraft) (*Service, error) {
	model := newServiceModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, getErr := r.store.ReadByIndex(txn, prefixByName+model.Name); getErr == nil {
			return fmt.Errorf("%w: service with name %q", ErrConflict, model.Name)
		} else if !errors.Is(getErr, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("failed to check name uniqueness: %w", getErr)
		}

		return r.store.Write(txn, model)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return newService(model), nil
}

// GetByID retrieves a service by its ID.
func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*Service, error) {
	var model *serviceModel

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

	return newService(model), nil
}

// GetByName retrieves a service by its unique name.
func (r *Repository) GetByName(_ context.Context, name string) (*Service, error) {
	var model *serviceModel

	err := r.db.View(func(txn *badger.Txn) error {
		found, err := r.store.ReadByIndex(txn, prefixByName+name)
		if errors.Is(err, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return fmt.Errorf("failed to get service by name: %w", err)
		}

		model = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return newService(model), nil
}

// List retrieves all services.
func (r *Repository) List(_ context.Context) ([]Service, error) {
	var services []Service

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 16

		models, err := r.store.List(txn, prefixByID, opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			services = append(services, *newService(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	return services, nil
}

// Update updates an existing service.
func (r *Repository) Update(_ context.Context, id uuid.UUID, updater func(*Service) error) (*Service, error) {
	var updated *serviceModel

	err := r.db.Update(func(txn *badger.Txn) error {
		old, err := r.get(txn, id)
		if err != nil {
			return err
		}

		service := newService(old)
		if updErr := updater(service); updErr != nil {
			return updErr
		}

		updated = newServiceModel(&service.ServiceDraft)
		updated.ID = old.ID
		updated.CreatedAt = old.CreatedAt
		updated.UpdatedAt = time.Now()
		updated.Active = service.Active

		if updated.Name != old.Name {
			if _, getErr := r.store.ReadByIndex(txn, prefixByName+updated.Name); getErr == nil {
				return fmt.Errorf("%w: service with name %q", ErrConflict, updated.Name)
			} else if !errors.Is(getErr, badgerfx.ErrKeyNotFound) {
				return fmt.Errorf("failed to check name uniqueness: %w", getErr)
			}
		}

		return r.store.Replace(txn, old, updated)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}

	return newService(updated), nil
}

// Delete deletes a service.
func (r *Repository) Delete(_ context.Context, id uuid.UUID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		model, err := r.get(txn, id)
		if err != nil {
			return err
		}

		return r.store.Delete(txn, model)
	})
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}

	return nil
}

func (r *Repository) get(txn *badger.Txn, id uuid.UUID) (*serviceModel, error) {
	model, err := r.store.Read(txn, prefixByID+id.String())
	if errors.Is(err, badgerfx.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	return model, nil
}
