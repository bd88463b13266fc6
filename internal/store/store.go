// Package store owns durable state: the current-state prompt records
// and the append-only version ledger. Two implementations exist, one on
// Postgres and one in memory; the service layer only sees these
// interfaces.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/models"
)

// ListFilter narrows FindByOwner results. Archived is a tri-state:
// nil means both archived and active prompts.
type ListFilter struct {
	Archived *bool
	// Search matches case-insensitively against title or tags.
	Search string
	// Tag filters by exact tag membership.
	Tag string
}

// PromptStore holds one mutable record per prompt. Lookups return
// (nil, nil) when no record exists; the caller decides whether that is
// an error.
type PromptStore interface {
	Create(ctx context.Context, ownerID uuid.UUID, content models.PromptContent) (*models.Prompt, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]models.Prompt, error)
	// Save persists mutations to title/description/tags/archived/
	// current_version and refreshes updated_at.
	Save(ctx context.Context, p *models.Prompt) error
	// Delete removes the record only; the version ledger is untouched.
	Delete(ctx context.Context, id uuid.UUID) error
}

// VersionLedger is the append-only history per prompt. Append assigns
// the version number itself: latest existing number plus one, starting
// at 1. Two concurrent appends racing for the same number are resolved
// by the store's uniqueness guarantee on (promptID, versionNumber); the
// loser gets a conflict error.
type VersionLedger interface {
	Append(ctx context.Context, promptID uuid.UUID, event models.VersionEvent, before, after *models.PromptContent) (*models.PromptVersion, error)
	// Latest returns (nil, nil) when the prompt has no versions.
	Latest(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error)
	AllForPrompt(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error)
	DeleteAllForPrompt(ctx context.Context, promptID uuid.UUID) error
}
