package releases

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-core-fx/fiberfx/handler"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/harborcd/harborcd/internal/deployments"
	"github.com/harborcd/harborcd/internal/releases"
	"github.com/harborcd/harborcd/internal/server/validation"
)

type Handler struct {
	releasesSvc  *releases.Service
	orchestrator *deployments.Service

	validator *validator.Validate
	logger    *zap.Logger
}

func NewHandler(
	releasesSvc *releases.Service,
	orchestrator *deployments.Service,
	validator *validator.Validate,
	logger *zap.Logger,
) handler.Handler {
	return &Handler{
		releasesSvc:  releasesSvc,
		orchestrator: orchestrator,

		validator: validator,
		logger:    logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/releases")

	r.Use(h.errorsHandler)
	r.Post("/", validation.DecorateWithBodyEx(h.validator, h.post))
	r.Get("/", h.list)
	r.Get("/:id", h.get)
	r.Post("/:id/promote", validation.DecorateWithBodyEx(h.validator, h.promote))
}

func (h *Handler) post(c *fiber.Ctx, req *CreateRequest) error {
	release, err := h.releasesSvc.Create(c.Context(), &releases.ReleaseDraft{
		ServiceID: req.ServiceID,
		Version:   req.Version,
		Notes:     req.Notes,
		GitCommit: req.GitCommit,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return fmt.Errorf("failed to create release: %w", err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.toResponse(release))
}

func (h *Handler) list(c *fiber.Ctx) error {
	serviceID, err := uuid.Parse(c.Query("service_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "service_id query parameter is required")
	}

	all, err := h.releasesSvc.ListByService(c.Context(), serviceID)
	if err != nil {
		return fmt.Errorf("failed to list releases: %w", err)
	}

	return c.JSON(lo.Map(all, func(release releases.Release, _ int) ReleaseResponse {
		return h.toResponse(&release)
	}))
}

func (h *Handler) get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	release, err := h.releasesSvc.Get(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get release: %w", err)
	}

	return c.JSON(h.toResponse(release))
}

func (h *Handler) promote(c *fiber.Ctx, req *PromoteRequest) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	deployment, err := h.orchestrator.PromoteRelease(c.Context(), id, req.EnvironmentID, req.Requester)
	if err != nil {
		return fmt.Errorf("failed to promote release: %w", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"deployment_id":  deployment.ID,
		"release_id":     deployment.ReleaseID,
		"environment_id": deployment.EnvironmentID,
		"status":         deployment.Status,
	})
}

func (h *Handler) errorsHandler(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, releases.ErrNotFound), errors.Is(err, deployments.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, releases.ErrConflict), errors.Is(err, deployments.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, releases.ErrNotAllowed):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	return err //nolint:wrapcheck //already wrapped
}

func (h *Handler) toResponse(release *releases.Release) ReleaseResponse {
	promotions := make(map[string]time.Time, len(release.Promotions))
	for environmentID, promotedAt := range release.Promotions {
		promotions[environmentID.String()] = promotedAt
	}

	return ReleaseResponse{
		CreateRequest: CreateRequest{
			ServiceID: release.ServiceID,
			Version:   release.Version,
			Notes:     release.Notes,
			GitCommit: release.GitCommit,
			CreatedBy: release.CreatedBy,
		},
		ID:         release.ID,
		Status:     string(release.Status),
		Promotions: promotions,
		CreatedAt:  release.CreatedAt,
		UpdatedAt:  release.UpdatedAt,
	}
}
