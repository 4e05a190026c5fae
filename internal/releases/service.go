package releases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborcd/harborcd/internal/services"
)

type Service struct {
	releases *Repository

	registry *services.Registry

	logger *zap.Logger
}

func NewService(releases *Repository, registry *services.Registry, logger *zap.Logger) *Service {
	return &Service{
		releases: releases,
		registry: registry,
		logger:   logger,
	}
}

// Create cuts a new draft release for a service.
func (s *Service) Create(ctx context.Context, draft *ReleaseDraft) (*Release, error) {
	s.logger.Info("creating release",
		zap.String("service_id", draft.ServiceID.String()),
		zap.String("version", draft.Version),
	)

	if _, err := s.registry.Get(ctx, draft.ServiceID); err != nil {
		s.logger.Error("failed to get service", zap.Error(err))
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	release, err := s.releases.Create(ctx, draft)
	if err != nil {
		s.logger.Error("failed to create release", zap.Error(err))
		return nil, err
	}

	s.logger.Info("release created", zap.String("id", release.ID.String()))
	return release, nil
}

// Get retrieves a release by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Release, error) {
	s.logger.Debug("getting release", zap.String("id", id.String()))

	release, err := s.releases.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get release", zap.String("id", id.String()), zap.Error(err))
		return nil, err
	}

	return release, nil
}

// ListByService retrieves all releases of a service, most recent first.
func (s *Service) ListByService(ctx context.Context, serviceID uuid.UUID) ([]Release, error) {
	s.logger.Debug("listing releases", zap.String("service_id", serviceID.String()))

	releases, err := s.releases.ListByService(ctx, serviceID)
	if err != nil {
		s.logger.Error("failed to list releases", zap.Error(err))
		return nil, err
	}

	return releases, nil
}

// MarkPromoted records the release's promotion to an environment.
func (s *Service) MarkPromoted(ctx context.Context, id, environmentID uuid.UUID, promotedAt time.Time) (*Release, error) {
	s.logger.Info("marking release promoted",
		zap.String("id", id.String()),
		zap.String("environment_id", environmentID.String()),
	)

	release, err := s.releases.Update(ctx, id, func(release *Release) error {
		return release.MarkPromoted(environmentID, promotedAt)
	})
	if err != nil {
		s.logger.Error("failed to mark release promoted", zap.String("id", id.String()), zap.Error(err))
		return nil, err
	}

	return release, nil
}

// MarkRolledBack transitions the release to rolled_back.
func (s *Service) MarkRolledBack(ctx context.Context, id uuid.UUID) (*Release, error) {
	s.logger.Info("marking release rolled back", zap.String("id", id.String()))

	release, err := s.releases.Update(ctx, id, func(release *Release) error {
		return release.MarkRolledBack()
	})
	if err != nil {
		s.logger.Error("failed to mark release rolled back", zap.String("id", id.String()), zap.Error(err))
		return nil, err
	}

	return release, nil
}

// RevertPromotion undoes MarkPromoted when a composite promotion fails after
// the release was already flipped. It restores the given prior status and
// forgets the environment's promotion timestamp.
func (s *Service) RevertPromotion(ctx context.Context, id, environmentID uuid.UUID, prior Status) (*Release, error) {
	s.logger.Warn("reverting release promotion",
		zap.String("id", id.String()),
		zap.String("environment_id", environmentID.String()),
	)

	return s.releases.Update(ctx, id, func(release *Release) error {
		delete(release.Promotions, environmentID)
		release.Status = prior
		return nil
	})
}

// FindRollbackTarget selects the most recently promoted release of the service
// for the environment, strictly older than the given promotion time. Ties on
// the promotion timestamp are broken by release ID, descending.
func (s *Service) FindRollbackTarget(
	ctx context.Context,
	serviceID, environmentID, exclude uuid.UUID,
	before time.Time,
) (*Release, error) {
	candidates, err := s.releases.ListByService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	var (
		target   *Release
		targetAt time.Time
	)
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ID == exclude || candidate.Status != StatusPromoted {
			continue
		}

		promotedAt, ok := candidate.PromotedAt(environmentID)
		if !ok || !promotedAt.Before(before) {
			continue
		}

		if target == nil ||
			promotedAt.After(targetAt) ||
			(promotedAt.Equal(targetAt) && strings.Compare(candidate.ID.String(), target.ID.String()) > 0) {
			target = candidate
			targetAt = promotedAt
		}
	}

	if target == nil {
		return nil, fmt.Errorf(
			"%w: no promoted release for service %s in environment %s before %s",
			ErrNotFound, serviceID, environmentID, before.Format(time.RFC3339),
		)
	}

	return target, nil
}
