package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	entries *Repository

	logger *zap.Logger
}

func NewService(entries *Repository, logger *zap.Logger) *Service {
	return &Service{
		entries: entries,
		logger:  logger,
	}
}

// Append records an action against a resource. Callers append only after the
// transition they describe has been committed.
func (s *Service) Append(
	ctx context.Context,
	userID *uuid.UUID,
	action, resourceType string,
	resourceID uuid.UUID,
	metadata map[string]string,
) (*Entry, error) {
	entry, err := s.entries.Append(ctx, &EntryDraft{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
	})
	if err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("action", action),
			zap.String("resource_id", resourceID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Debug("audit entry appended",
		zap.String("action", action),
		zap.String("resource_type", resourceType),
		zap.String("resource_id", resourceID.String()),
	)
	return entry, nil
}

// List retrieves audit entries matching the filter, most recent first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", zap.Error(err))
		return nil, err
	}

	return entries, nil
}

// ExportCSV renders matching entries as CSV, most recent first.
func (s *Service) ExportCSV(ctx context.Context, filter Filter) (string, error) {
	entries, err := s.List(ctx, filter)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	writer := csv.NewWriter(&out)

	header := []string{"ID", "User ID", "Action", "Resource Type", "Resource ID", "Metadata", "Created At"}
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		userID := ""
		if entry.UserID != nil {
			userID = entry.UserID.String()
		}

		metadata := make([]string, 0, len(entry.Metadata))
		for key, value := range entry.Metadata {
			metadata = append(metadata, key+"="+value)
		}
		sort.Strings(metadata)

		record := []string{
			entry.ID.String(),
			userID,
			entry.Action,
			entry.ResourceType,
			entry.ResourceID.String(),
			strings.Join(metadata, ";"),
			entry.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	return out.String(), nil
}
