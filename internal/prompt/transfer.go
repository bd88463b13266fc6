package prompt

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/store"
)

// PromptExport is one prompt with its full ordered history.
type PromptExport struct {
	Prompt   *models.Prompt         `json:"prompt"`
	Versions []models.PromptVersion `json:"versions"`
}

// Export returns every prompt the requester owns, archived included,
// each with its complete version sequence.
func (s *Service) Export(ctx context.Context, requester uuid.UUID) ([]PromptExport, error) {
	prompts, err := s.prompts.FindByOwner(ctx, requester, store.ListFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]PromptExport, 0, len(prompts))
	for i := range prompts {
		versions, err := s.ledger.AllForPrompt(ctx, prompts[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, PromptExport{Prompt: &prompts[i], Versions: versions})
	}
	return out, nil
}

// ImportItem is one prompt in a bulk import payload: a title and its
// version sequence in chronological order. Version numbers are never
// taken from the payload; the ledger reassigns them contiguously.
type ImportItem struct {
	Title    string          `json:"title"`
	Versions []ImportVersion `json:"versions"`
}

type ImportVersion struct {
	Event  models.VersionEvent   `json:"event"`
	Before *models.PromptContent `json:"before_object,omitempty"`
	After  *models.PromptContent `json:"after_object,omitempty"`
}

type ImportResult struct {
	PromptsCreated  int `json:"prompts_created"`
	VersionsCreated int `json:"versions_created"`
	Skipped         int `json:"skipped"`
}

// Import creates a prompt plus its full version sequence per item,
// atomically per item: a malformed or half-failed item is rolled back
// and counted as skipped instead of failing the whole batch.
func (s *Service) Import(ctx context.Context, requester uuid.UUID, items []ImportItem) (*ImportResult, error) {
	result := &ImportResult{}

	for i, item := range items {
		created, err := s.importItem(ctx, requester, item)
		if err != nil {
			slog.Warn("skipping malformed import item", "index", i, "error", err)
			result.Skipped++
			continue
		}
		result.PromptsCreated++
		result.VersionsCreated += created
	}

	return result, nil
}

func (s *Service) importItem(ctx context.Context, requester uuid.UUID, item ImportItem) (int, error) {
	content, err := validateImportItem(item)
	if err != nil {
		return 0, err
	}

	p, err := s.prompts.Create(ctx, requester, *content)
	if err != nil {
		return 0, err
	}

	appended := 0
	for _, iv := range item.Versions {
		if _, err := s.ledger.Append(ctx, p.ID, iv.Event, iv.Before, iv.After); err != nil {
			s.undoImport(ctx, p.ID)
			return 0, err
		}
		appended++
	}

	p.CurrentVersion = appended
	if err := s.prompts.Save(ctx, p); err != nil {
		s.undoImport(ctx, p.ID)
		return 0, err
	}

	s.publish(p, "prompt.imported", appended)
	return appended, nil
}

// validateImportItem returns the content the prompt record ends up
// with: the afterObject of the last version carrying one. The version
// chain must hold the same invariants the ledger produces: the first
// version is a create with no beforeObject, and every later version's
// beforeObject equals the previous version's afterObject.
func validateImportItem(item ImportItem) (*models.PromptContent, error) {
	if len(item.Versions) == 0 {
		return nil, errMalformed("item has no versions")
	}

	var final, prevAfter *models.PromptContent
	for i, iv := range item.Versions {
		switch iv.Event {
		case models.EventCreate, models.EventUpdate, models.EventDelete:
		default:
			return nil, errMalformed("unknown event")
		}
		if i == 0 {
			if iv.Event != models.EventCreate {
				return nil, errMalformed("first version must be a create event")
			}
			if iv.Before != nil {
				return nil, errMalformed("create version carries a before object")
			}
		} else if !contentsMatch(iv.Before, prevAfter) {
			return nil, errMalformed("before object does not match the previous after object")
		}
		if iv.Event != models.EventDelete && iv.After == nil {
			return nil, errMalformed("version missing after object")
		}
		if iv.After != nil {
			final = iv.After
		}
		prevAfter = iv.After
	}

	if final == nil {
		return nil, errMalformed("no usable content")
	}

	content := *final
	if strings.TrimSpace(content.Title) == "" {
		content.Title = strings.TrimSpace(item.Title)
	}
	if content.Title == "" {
		return nil, errMalformed("item has no title")
	}
	return &content, nil
}

func contentsMatch(a, b *models.PromptContent) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (s *Service) undoImport(ctx context.Context, promptID uuid.UUID) {
	if err := s.ledger.DeleteAllForPrompt(ctx, promptID); err != nil {
		slog.Error("failed to undo import versions", "prompt_id", promptID, "error", err)
	}
	if err := s.prompts.Delete(ctx, promptID); err != nil {
		slog.Error("failed to undo import prompt", "prompt_id", promptID, "error", err)
	}
}

type malformedError string

func errMalformed(msg string) error { return malformedError(msg) }

func (e malformedError) Error() string { return string(e) }
