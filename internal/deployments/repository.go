package deployments

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
	store *badgerfx.Repository[*deploymentModel]
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db:    db,
		store: badgerfx.NewRepository(func() *deploymentModel { return &deploymentModel{} }),
	}
}

// Create creates a new deployment. At most one deployment per
// (release, environment) pair may be active at a time.
func (r *Repository) Create(_ context.Context, draft *DeploymentDraft) (*Deployment, error) {
	model := newDeploymentModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		key := activeKey(model.ReleaseID, model.EnvironmentID)
		if _, getErr := r.store.ReadByIndex(txn, key); getErr == nil {
			return fmt.Errorf(
				"%w: release %s already has an active deployment to environment %s",
				ErrConflict, model.ReleaseID, model.EnvironmentID,
			)
		} else if !errors.Is(getErr, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("failed to check active deployment: %w", getErr)
		}

		return r.store.Write(txn, model)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	return newDeployment(model), nil
}

// GetByID retrieves a deployment by its ID.
func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*Deployment, error) {
	var model *deploymentModel

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

	return newDeployment(model), nil
}

// Exists reports whether a deployment with the given ID is stored.
func (r *Repository) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	exists := false

	err := r.db.View(func(txn *badger.Txn) error {
		_, err := r.store.Read(txn, prefixByID+id.String())
		if errors.Is(err, badgerfx.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get deployment: %w", err)
		}

		exists = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return exists, nil
}

// List retrieves all deployments.
func (r *Repository) List(_ context.Context) ([]Deployment, error) {
	var deployments []Deployment

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 16

		models, err := r.store.List(txn, prefixByID, opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			deployments = append(deployments, *newDeployment(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	return deployments, nil
}

// ListByRelease retrieves all deployments of a release, most recent first.
func (r *Repository) ListByRelease(_ context.Context, releaseID uuid.UUID) ([]Deployment, error) {
	var deployments []Deployment

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = 16

		models, err := r.store.ListByIndex(txn, prefixByRelease+releaseID.String()+":", opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			deployments = append(deployments, *newDeployment(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	return deployments, nil
}

// Update updates an existing deployment. The active marker is dropped when the
// updater moves the deployment into a terminal status.
func (r *Repository) Update(_ context.Context, id uuid.UUID, updater func(*Deployment) error) (*Deployment, error) {
	var updated *deploymentModel

	err := r.db.Update(func(txn *badger.Txn) error {
		old, err := r.get(txn, id)
		if err != nil {
			return err
		}

		deployment := newDeployment(old)
		if updErr := updater(deployment); updErr != nil {
			return updErr
		}

		updated = newDeploymentUpdateModel(old, deployment)

		return r.store.Replace(txn, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return newDeployment(updated), nil
}

// Delete removes a deployment. Used only to unwind a failed promotion.
func (r *Repository) Delete(_ context.Context, id uuid.UUID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		model, err := r.get(txn, id)
		if err != nil {
			return err
		}

		return r.store.Delete(txn, model)
	})
}

func (r *Repository) get(txn *badger.Txn, id uuid.UUID) (*deploymentModel, error) {
	model, err := r.store.Read(txn, prefixByID+id.String())
	if errors.Is(err, badgerfx.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	return model, nil
}

type ApprovalRepository struct {
	db    *badger.DB
	store *badgerfx.Repository[*approvalModel]
}

func NewApprovalRepository(db *badger.DB) *ApprovalRepository {
	return &ApprovalRepository{
		db:    db,
		store: badgerfx.NewRepository(func() *approvalModel { return &approvalModel{} }),
	}
}

// Create creates a pending approval for a deployment's gated stage.
func (r *ApprovalRepository) Create(_ context.Context, draft *ApprovalDraft) (*Approval, error) {
	model := newApprovalModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		return r.store.Write(txn, model)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create approval: %w", err)
	}

	return newApproval(model), nil
}

// GetByDeployment retrieves all approvals attached to a deployment.
func (r *ApprovalRepository) GetByDeployment(_ context.Context, deploymentID uuid.UUID) ([]Approval, error) {
	var approvals []Approval

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 16

		models, err := r.store.ListByIndex(txn, approvalPrefixByDeployment+deploymentID.String()+":", opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			approvals = append(approvals, *newApproval(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}

	return approvals, nil
}

// GetByStage retrieves the approval gating a specific stage of a deployment.
func (r *ApprovalRepository) GetByStage(_ context.Context, deploymentID uuid.UUID, stage string) (*Approval, error) {
	var model *approvalModel

	err := r.db.View(func(txn *badger.Txn) error {
		found, err := r.store.ReadByIndex(txn, approvalPrefixByDeployment+deploymentID.String()+":"+stage)
		if errors.Is(err, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("%w: deployment %s stage %q", ErrApprovalNotFound, deploymentID, stage)
		}
		if err != nil {
			return fmt.Errorf("failed to get approval: %w", err)
		}

		model = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return newApproval(model), nil
}

// Update updates an existing approval.
func (r *ApprovalRepository) Update(_ context.Context, id uuid.UUID, updater func(*Approval) error) (*Approval, error) {
	var updated *approvalModel

	err := r.db.Update(func(txn *badger.Txn) error {
		old, err := r.store.Read(txn, approvalPrefixByID+id.String())
		if errors.Is(err, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrApprovalNotFound, id.String())
		}
		if err != nil {
			return fmt.Errorf("failed to get approval: %w", err)
		}

		approval := newApproval(old)
		if updErr := updater(approval); updErr != nil {
			return updErr
		}

		updated = newApprovalUpdateModel(old, approval)

		return r.store.Replace(txn, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return newApproval(updated), nil
}

// DeleteByDeployment removes all approvals of a deployment. Used only to
// unwind a failed promotion.
func (r *ApprovalRepository) DeleteByDeployment(_ context.Context, deploymentID uuid.UUID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 16

		models, err := r.store.ListByIndex(txn, approvalPrefixByDeployment+deploymentID.String()+":", opts)
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
}

type RollbackRepository struct {
	db    *badger.DB
	store *badgerfx.Repository[*rollbackModel]
}

func NewRollbackRepository(db *badger.DB) *RollbackRepository {
	return &RollbackRepository{
		db:    db,
		store: badgerfx.NewRepository(func() *rollbackModel { return &rollbackModel{} }),
	}
}

// Create records a rollback attempt.
func (r *RollbackRepository) Create(_ context.Context, draft *RollbackDraft) (*Rollback, error) {
	model := newRollbackModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		return r.store.Write(txn, model)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rollback: %w", err)
	}

	return newRollback(model), nil
}

// GetByID retrieves a rollback by its ID.
func (r *RollbackRepository) GetByID(_ context.Context, id uuid.UUID) (*Rollback, error) {
	var model *rollbackModel

	err := r.db.View(func(txn *badger.Txn) error {
		found, err := r.store.Read(txn, rollbackPrefixByID+id.String())
		if errors.Is(err, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRollbackNotFound, id.String())
		}
		if err != nil {
			return fmt.Errorf("failed to get rollback: %w", err)
		}

		model = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return newRollback(model), nil
}

// ListByDeployment retrieves all rollbacks of a deployment, most recent first.
func (r *RollbackRepository) ListByDeployment(_ context.Context, deploymentID uuid.UUID) ([]Rollback, error) {
	var rollbacks []Rollback

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = 16

		models, err := r.store.ListByIndex(txn, rollbackPrefixByDeployment+deploymentID.String()+":", opts)
		if err != nil {
			return err
		}

		for _, model := range models {
			rollbacks = append(rollbacks, *newRollback(model))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rollbacks: %w", err)
	}

	return rollbacks, nil
}

// Update updates an existing rollback.
func (r *RollbackRepository) Update(_ context.Context, id uuid.UUID, updater func(*Rollback) error) (*Rollback, error) {
	var updated *rollbackModel

	err := r.db.Update(func(txn *badger.Txn) error {
		old, err := r.store.Read(txn, rollbackPrefixByID+id.String())
		if errors.Is(err, badgerfx.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRollbackNotFound, id.String())
		}
		if err != nil {
			return fmt.Errorf("failed to get rollback: %w", err)
		}

		rollback := newRollback(old)
		if updErr := updater(rollback); updErr != nil {
			return updErr
		}

		updated = newRollbackUpdateModel(old, rollback)

		return r.store.Replace(txn, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return newRollback(updated), nil
}
