package services

import (
	"errors"
	"fmt"

	"github.com/go-core-fx/fiberfx/handler"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/harborcd/harborcd/internal/server/validation"
	"github.com/harborcd/harborcd/internal/services"
)

type Handler struct {
	registry *services.Registry

	validator *validator.Validate
	logger    *zap.Logger
}

func NewHandler(registry *services.Registry, validator *validator.Validate, logger *zap.Logger) handler.Handler {
	return &Handler{
		registry: registry,

		validator: validator,
		logger:    logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/services")

	r.Use(h.errorsHandler)
	r.Post("/", validation.DecorateWithBodyEx(h.validator, h.post))
	r.Get("/", h.list)
	r.Get("/:id", h.get)
	r.Patch("/:id", validation.DecorateWithBodyEx(h.validator, h.patch))
	r.Delete("/:id", h.delete)
}

func (h *Handler) post(c *fiber.Ctx, req *CreateRequest) error {
	service, err := h.registry.Create(c.Context(), &services.ServiceDraft{
		Name:          req.Name,
		Description:   req.Description,
		RepositoryURL: req.RepositoryURL,
		SlackChannel:  req.SlackChannel,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.toResponse(service))
}

func (h *Handler) list(c *fiber.Ctx) error {
	all, err := h.registry.List(c.Context())
	if err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}

	return c.JSON(lo.Map(all, func(service services.Service, _ int) ServiceResponse {
		return h.toResponse(&service)
	}))
}

func (h *Handler) get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	service, err := h.registry.Get(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get service: %w", err)
	}

	return c.JSON(h.toResponse(service))
}

func (h *Handler) patch(c *fiber.Ctx, req *UpdateRequest) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	service, err := h.registry.Update(c.Context(), id, func(service *services.Service) error {
		if req.Description != nil {
			service.Description = *req.Description
		}
		if req.RepositoryURL != nil {
			service.RepositoryURL = *req.RepositoryURL
		}
		if req.SlackChannel != nil {
			service.SlackChannel = *req.SlackChannel
		}
		if req.Active != nil {
			service.Active = *req.Active
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}

	return c.JSON(h.toResponse(service))
}

func (h *Handler) delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.registry.Delete(c.Context(), id); err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) errorsHandler(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}

	return err //nolint:wrapcheck //already wrapped
}

func (h *Handler) toResponse(service *services.Service) ServiceResponse {
	return ServiceResponse{
		CreateRequest: CreateRequest{
			Name:          service.Name,
			Description:   service.Description,
			RepositoryURL: service.RepositoryURL,
			SlackChannel:  service.SlackChannel,
		},
		ID:        service.ID,
		Active:    service.Active,
		CreatedAt: service.CreatedAt,
		UpdatedAt: service.UpdatedAt,
	}
}
