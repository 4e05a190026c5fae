package deployments

import (
	"errors"
	"fmt"

	"github.com/go-core-fx/fiberfx/handler"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/harborcd/harborcd/internal/deployments"
	"github.com/harborcd/harborcd/internal/metrics"
	"github.com/harborcd/harborcd/internal/pipeline"
	"github.com/harborcd/harborcd/internal/server/validation"
)

type Handler struct {
	orchestrator *deployments.Service
	metricsSvc   *metrics.Service

	validator *validator.Validate
	logger    *zap.Logger
}

func NewHandler(
	orchestrator *deployments.Service,
	metricsSvc *metrics.Service,
	validator *validator.Validate,
	logger *zap.Logger,
) handler.Handler {
	return &Handler{
		orchestrator: orchestrator,
		metricsSvc:   metricsSvc,

		validator: validator,
		logger:    logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/deployments")

	r.Use(h.errorsHandler)
	r.Post("/", validation.DecorateWithBodyEx(h.validator, h.post))
	r.Get("/", h.list)
	r.Get("/:id", h.get)
	r.Get("/:id/metrics", h.getMetrics)
	r.Post("/:id/metrics", validation.DecorateWithBodyEx(h.validator, h.postMetric))
	r.Get("/:id/stages/next", h.getNextStage)
	r.Post("/:id/stages/:stageId/result", validation.DecorateWithBodyEx(h.validator, h.postStageResult))
	r.Get("/:id/approvals", h.listApprovals)
	r.Post("/:id/approvals", validation.DecorateWithBodyEx(h.validator, h.postApproval))
	r.Get("/:id/rollbacks", h.listRollbacks)
	r.Post("/:id/rollbacks", validation.DecorateWithBodyEx(h.validator, h.postRollback))
}

func (h *Handler) post(c *fiber.Ctx, req *CreateRequest) error {
	deployment, err := h.orchestrator.CreateDeployment(
		c.Context(), req.ReleaseID, req.EnvironmentID, req.Requester,
	)
	if err != nil {
		return fmt.Errorf("failed to create deployment: %w", err)
	}

	return c.Status(fiber.StatusCreated).JSON(newDeploymentResponse(deployment))
}

func (h *Handler) list(c *fiber.Ctx) error {
	var (
		all []deployments.Deployment
		err error
	)
	if releaseParam := c.Query("release_id"); releaseParam != "" {
		releaseID, parseErr := uuid.Parse(releaseParam)
		if parseErr != nil {
			return fiber.NewError(fiber.StatusBadRequest, parseErr.Error())
		}
		all, err = h.orchestrator.ListByRelease(c.Context(), releaseID)
	} else {
		all, err = h.orchestrator.List(c.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list deployments: %w", err)
	}

	return c.JSON(lo.Map(all, func(deployment deployments.Deployment, _ int) DeploymentResponse {
		return newDeploymentResponse(&deployment)
	}))
}

func (h *Handler) get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.orchestrator.GetWithStages(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get deployment: %w", err)
	}

	return c.JSON(DeploymentDetailResponse{
		DeploymentResponse: newDeploymentResponse(&detail.Deployment),
		Stages: lo.Map(detail.Stages, func(stage pipeline.Stage, _ int) StageResponse {
			return newStageResponse(&stage)
		}),
	})
}

func (h *Handler) getMetrics(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.orchestrator.GetWithMetrics(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get deployment: %w", err)
	}

	return c.JSON(DeploymentDetailResponse{
		DeploymentResponse: newDeploymentResponse(&detail.Deployment),
		Stages: lo.Map(detail.Stages, func(stage pipeline.Stage, _ int) StageResponse {
			return newStageResponse(&stage)
		}),
		Metrics: lo.Map(detail.Metrics, func(metric metrics.Metric, _ int) MetricResponse {
			return newMetricResponse(&metric)
		}),
	})
}

func (h *Handler) postMetric(c *fiber.Ctx, req *MetricRequest) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	metric, err := h.metricsSvc.RecordMetric(c.Context(), id, req.Name, req.Value, req.Unit)
	if err != nil {
		return fmt.Errorf("failed to record metric: %w", err)
	}

	return c.Status(fiber.StatusCreated).JSON(newMetricResponse(metric))
}

func (h *Handler) getNextStage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	stage, ok, err := h.orchestrator.NextRunnableStage(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get next runnable stage: %w", err)
	}
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(newStageResponse(stage))
}

func (h *Handler) postStageResult(c *fiber.Ctx, req *StageResultRequest) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	stageID, err := uuid.Parse(c.Params("stageId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	stage, err := h.orchestrator.ReportStageResult(
		c.Context(), id, stageID, pipeline.Status(req.Status), req.Output,
	)
	if err != nil {
		return fmt.Errorf("failed to report stage result: %w", err)
	}

	return c.JSON(newStageResponse(stage))
}

func (h *Handler) listApprovals(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	approvals, err := h.orchestrator.GetApprovals(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to list approvals: %w", err)
	}

	return c.JSON(lo.Map(approvals, func(approval deployments.Approval, _ int) ApprovalResponse {
		return newApprovalResponse(&approval)
	}))
}

func (h *Handler) postApproval(c *fiber.Ctx, req *ApprovalRequest) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	approval, err := h.orchestrator.RecordApprovalDecision(
		c.Context(), id, req.Approver, deployments.Decision(req.Decision), req.Comment,
	)
	if err != nil {
		return fmt.Errorf("failed to record approval decision: %w", err)
	}

	return c.JSON(newApprovalResponse(approval))
}

func (h *Handler) listRollbacks(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	rollbacks, err := h.orchestrator.ListRollbacks(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to list rollbacks: %w", err)
	}

	return c.JSON(lo.Map(rollbacks, func(rollback deployments.Rollback, _ int) RollbackResponse {
		return newRollbackResponse(&rollback)
	}))
}

func (h *Handler) postRollback(c *fiber.Ctx, req *RollbackRequest) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	rollback, err := h.orchestrator.ExecuteRollback(
		c.Context(), id, req.Initiator, req.Reason, req.Force,
	)
	if err != nil {
		return fmt.Errorf("failed to execute rollback: %w", err)
	}

	return c.Status(fiber.StatusCreated).JSON(newRollbackResponse(rollback))
}

func (h *Handler) errorsHandler(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, deployments.ErrNotFound),
		errors.Is(err, deployments.ErrApprovalNotFound),
		errors.Is(err, deployments.ErrRollbackNotFound),
		errors.Is(err, metrics.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, deployments.ErrConflict), errors.Is(err, deployments.ErrNoStableRelease):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, deployments.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, deployments.ErrApprovalRequired):
		return fiber.NewError(fiber.StatusLocked, err.Error())
	}

	return err //nolint:wrapcheck //already wrapped
}
