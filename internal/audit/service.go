// Package audit records prompt lifecycle events. Rows are written by
// the worker, not the request path, so a slow audit table never slows a
// mutation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptvault/promptvault/internal/models"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type Entry struct {
	UserID   uuid.UUID
	Action   string
	PromptID *uuid.UUID
	Details  map[string]interface{}
}

func (s *Service) Log(ctx context.Context, entry Entry) error {
	details, _ := json.Marshal(entry.Details)

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (user_id, action, prompt_id, details)
		 VALUES ($1, $2, $3, $4)`,
		entry.UserID, entry.Action, entry.PromptID, details,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, action, prompt_id, details, created_at
		 FROM audit_logs WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.PromptID, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
