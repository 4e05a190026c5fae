package environments

import (
	"errors"
	"fmt"

	"github.com/go-core-fx/fiberfx/handler"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/harborcd/harborcd/internal/environments"
	"github.com/harborcd/harborcd/internal/server/validation"
)

type Handler struct {
	environmentsSvc *environments.Service

	validator *validator.Validate
	logger    *zap.Logger
}

func NewHandler(
	environmentsSvc *environments.Service,
	validator *validator.Validate,
	logger *zap.Logger,
) handler.Handler {
	return &Handler{
		environmentsSvc: environmentsSvc,

		validator: validator,
		logger:    logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/environments")

	r.Use(h.errorsHandler)
	r.Post("/", validation.DecorateWithBodyEx(h.validator, h.post))
	r.Get("/", h.list)
	r.Get("/:id", h.get)
}

func (h *Handler) post(c *fiber.Ctx, req *CreateRequest) error {
	environment, err := h.environmentsSvc.Create(c.Context(), &environments.EnvironmentDraft{
		Name:        req.Name,
		Type:        environments.Type(req.Type),
		Description: req.Description,
	})
	if err != nil {
		return fmt.Errorf("failed to create environment: %w", err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.toResponse(environment))
}

func (h *Handler) list(c *fiber.Ctx) error {
	all, err := h.environmentsSvc.List(c.Context())
	if err != nil {
		return fmt.Errorf("failed to list environments: %w", err)
	}

	return c.JSON(lo.Map(all, func(environment environments.Environment, _ int) EnvironmentResponse {
		return h.toResponse(&environment)
	}))
}

func (h *Handler) get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	environment, err := h.environmentsSvc.Get(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get environment: %w", err)
	}

	return c.JSON(h.toResponse(environment))
}

func (h *Handler) errorsHandler(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, environments.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, environments.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}

	return err //nolint:wrapcheck //already wrapped
}

func (h *Handler) toResponse(environment *environments.Environment) EnvironmentResponse {
	return EnvironmentResponse{
		CreateRequest: CreateRequest{
			Name:        environment.Name,
			Type:        string(environment.Type),
			Description: environment.Description,
		},
		ID:        environment.ID,
		Active:    environment.Active,
		CreatedAt: environment.CreatedAt,
		UpdatedAt: environment.UpdatedAt,
	}
}
