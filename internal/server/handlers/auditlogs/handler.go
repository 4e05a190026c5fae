package auditlogs

import (
	"fmt"
	"time"

	"github.com/go-core-fx/fiberfx/handler"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/harborcd/harborcd/internal/audit"
)

type Handler struct {
	auditSvc *audit.Service

	logger *zap.Logger
}

func NewHandler(auditSvc *audit.Service, logger *zap.Logger) handler.Handler {
	return &Handler{
		auditSvc: auditSvc,

		logger: logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/audit-logs")

	r.Get("/", h.list)
	r.Get("/export", h.export)
}

func (h *Handler) list(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	entries, err := h.auditSvc.List(c.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}

	return c.JSON(lo.Map(entries, func(entry audit.Entry, _ int) EntryResponse {
		return toResponse(&entry)
	}))
}

func (h *Handler) export(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	csv, err := h.auditSvc.ExportCSV(c.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to export audit entries: %w", err)
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="audit-logs.csv"`)
	return c.SendString(csv)
}

func parseFilter(c *fiber.Ctx) (audit.Filter, error) {
	filter := audit.Filter{
		Action:       c.Query("action"),
		ResourceType: c.Query("resource_type"),
		Limit:        c.QueryInt("limit"),
		Offset:       c.QueryInt("offset"),
	}

	if param := c.Query("user_id"); param != "" {
		userID, err := uuid.Parse(param)
		if err != nil {
			return audit.Filter{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		filter.UserID = &userID
	}
	if param := c.Query("resource_id"); param != "" {
		resourceID, err := uuid.Parse(param)
		if err != nil {
			return audit.Filter{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		filter.ResourceID = &resourceID
	}
	if param := c.Query("since"); param != "" {
		since, err := time.Parse(time.RFC3339, param)
		if err != nil {
			return audit.Filter{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		filter.Since = &since
	}
	if param := c.Query("until"); param != "" {
		until, err := time.Parse(time.RFC3339, param)
		if err != nil {
			return audit.Filter{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		filter.Until = &until
	}

	return filter, nil
}

func toResponse(entry *audit.Entry) EntryResponse {
	return EntryResponse{
		ID:           entry.ID,
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Metadata:     entry.Metadata,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		CreatedAt:    entry.CreatedAt,
	}
}
