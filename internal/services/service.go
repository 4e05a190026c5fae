package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry manages the catalog of deployable services.
type Registry struct {
	services *Repository

	logger *zap.Logger
}

func NewRegistry(services *Repository, logger *zap.Logger) *Registry {
	return &Registry{
		services: services,
		logger:   logger,
	}
}

// Create registers a new service.
func (s *Registry) Create(ctx context.Context, draft *ServiceDraft) (*Service, error) {
	s.logger.Info("registering service", zap.String("name", draft.Name))

	service, err := s.services.Create(ctx, draft)
	if err != nil {
		s.logger.Error("failed to register service", zap.String("name", draft.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("service registered", zap.String("id", service.ID.String()))
	return service, nil
}

// Get retrieves a service by ID.
func (s *Registry) Get(ctx context.Context, id uuid.UUID) (*Service, error) {
	s.logger.Debug("getting service", zap.String("id", id.String()))

	service, err := s.services.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get service", zap.String("id", id.String()), zap.Error(err))
		return nil, err
	}

	return service, nil
}

// List retrieves all registered services.
func (s *Registry) List(ctx context.Context) ([]Service, error) {
	s.logger.Debug("listing services")

	services, err := s.services.List(ctx)
	if err != nil {
		s.logger.Error("failed to list services", zap.Error(err))
		return nil, err
	}

	return services, nil
}

// Update updates an existing service.
func (s *Registry) Update(ctx context.Context, id uuid.UUID, updater func(*Service) error) (*Service, error) {
	s.logger.Info("updating service", zap.String("id", id.String()))

	service, err := s.services.Update(ctx, id, updater)
	if err != nil {
		s.logger.Error("failed to update service", zap.String("id", id.String()), zap.Error(err))
		return nil, err
	}

	return service, nil
}

// Delete removes a service from the catalog.
func (s *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	s.logger.Info("deleting service", zap.String("id", id.String()))

	if err := s.services.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete service", zap.String("id", id.String()), zap.Error(err))
		return err
	}

	return nil
}
