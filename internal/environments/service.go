package environments

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	environments *Repository

	logger *zap.Logger
}

func NewService(environments *Repository, logger *zap.Logger) *Service {
	return &Service{
		environments: environments,
		logger:       logger,
	}
}

// Create creates a new environment.
func (s *Service) Create(ctx context.Context, draft *EnvironmentDraft) (*Environment, error) {
	s.logger.Info("creating environment", zap.String("name", draft.Name))

	environment, err := s.environments.Create(ctx, draft)
	if err != nil {
		s.logger.Error("failed to create environment", zap.String("name", draft.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("environment created", zap.String("id", environment.ID.String()))
	return environment, nil
}

// Get retrieves an environment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Environment, error) {
	s.logger.Debug("getting environment", zap.String("id", id.String()))

	environment, err := s.environments.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get environment", zap.String("id", id.String()), zap.Error(err))
		return nil, err
	}

	return environment, nil
}

// List retrieves all environments.
func (s *Service) List(ctx context.Context) ([]Environment, error) {
	s.logger.Debug("listing environments")

	environments, err := s.environments.List(ctx)
	if err != nil {
		s.logger.Error("failed to list environments", zap.Error(err))
		return nil, err
	}

	return environments, nil
}
