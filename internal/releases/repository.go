package releases

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
	store *badgerfx.Repository[*releaseModel]
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db:    db,
		store: badgerfx.NewRepository(func() *releaseModel { return &releaseModel{} }),
	}
}

// Create creates a new release. Versions are unique per service.
func (r *Repository) Create(_ context.Context, draft *ReleaseDraft) (*Release, error) {
	model := newReleaseModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		versionKey := prefixByVersion + model.ServiceID.String() + ":" + model.Version
		if _, getErr := r.store.ReadByIndex(txn, versionKey); getErr == nil {
			return fmt.Errorf("%w: version %q for service %s", ErrConflict, model.Version, model.ServiceID)
		} else if !errors.Is(getErr, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("failed to check version uniqueness: %w", getErr)
		}

		return r.store.Write(txn, model)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create release: %w", err)
	}

	return newRelease(model), nil
}

// GetByID retrieves a release by its ID.
func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*Release, error) {
	var model *releaseModel

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

	return newRelease(model), nil
}

// ListByService retrieves all releases of a service, most recent first.
func (r *Repository) ListByService(_ context.Context, serviceID uuid.UUID) ([]Release, error) {
	var releases []Release

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = 16

		models, err := r.store.ListByIndex(txn, prefixByService+serviceID.String()+":", opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			releases = append(releases, *newRelease(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	return releases, nil
}

// Update updates an existing release.
func (r *Repository) Update(_ context.Context, id uuid.UUID, updater func(*Release) error) (*Release, error) {
	var updated *releaseModel

	err := r.db.Update(func(txn *badger.Txn) error {
		old, err := r.get(txn, id)
		if err != nil {
			return err
		}

		release := newRelease(old)
		if updErr := updater(release); updErr != nil {
			return updErr
		}

		if release.ServiceID != old.ServiceID {
			return fmt.Errorf("%w: cannot change release service", ErrNotAllowed)
		}
		if release.Version != old.Version {
			return fmt.Errorf("%w: cannot change release version", ErrNotAllowed)
		}

		updated = newReleaseUpdateModel(old, release)

		return r.store.Replace(txn, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return newRelease(updated), nil
}

func (r *Repository) get(txn *badger.Txn, id uuid.UUID) (*releaseModel, error) {
	model, err := r.store.Read(txn, prefixByID+id.String())
	if errors.Is(err, badgerfx.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release: %w", err)
	}

	return model, nil
}
