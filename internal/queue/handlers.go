package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/promptvault/promptvault/internal/audit"
)

// NewMux wires task handlers for the worker process.
func NewMux(auditSvc *audit.Service) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePromptEvent, promptEventHandler(auditSvc))
	return mux
}

func promptEventHandler(auditSvc *audit.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PromptEventPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal prompt event: %w", err)
		}

		ownerID, err := uuid.Parse(payload.OwnerID)
		if err != nil {
			return fmt.Errorf("parse owner id: %w", err)
		}

		entry := audit.Entry{
			UserID: ownerID,
			Action: payload.Action,
		}
		if promptID, err := uuid.Parse(payload.PromptID); err == nil {
			entry.PromptID = &promptID
		}
		if payload.VersionNumber > 0 {
			entry.Details = map[string]interface{}{"version_number": payload.VersionNumber}
		}

		if err := auditSvc.Log(ctx, entry); err != nil {
			return err
		}

		slog.Debug("recorded prompt event",
			"action", payload.Action, "prompt_id", payload.PromptID)
		return nil
	}
}
