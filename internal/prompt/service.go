// Package prompt orchestrates the prompt store and the version ledger:
// every accepted change appends exactly one immutable version and moves
// the prompt's current_version pointer to it. The ledger's latest
// afterObject, not the live prompt row, is the source of truth for
// change detection.
package prompt

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/apperr"
	"github.com/promptvault/promptvault/internal/cache"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/queue"
	"github.com/promptvault/promptvault/internal/store"
)

const cacheTTL = 5 * time.Minute

// appendAttempts bounds the read-compare-append sequence: one retry
// after a version-number collision, then the conflict surfaces.
const appendAttempts = 2

type Service struct {
	prompts store.PromptStore
	ledger  store.VersionLedger
	cache   *cache.Cache
	events  *queue.Client
}

// NewService composes the orchestrator. cache and events may be nil;
// both degrade to no-ops.
func NewService(prompts store.PromptStore, ledger store.VersionLedger, c *cache.Cache, events *queue.Client) *Service {
	return &Service{prompts: prompts, ledger: ledger, cache: c, events: events}
}

// Input carries the user-supplied content of a create or update.
type Input struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (in Input) clean() (models.PromptContent, error) {
	c := models.PromptContent{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Tags:        make([]string, 0, len(in.Tags)),
	}
	for _, t := range in.Tags {
		c.Tags = append(c.Tags, strings.TrimSpace(t))
	}

	if c.Title == "" || c.Description == "" {
		return c, apperr.Validation("title and description are required")
	}
	return c, nil
}

// CreateResult is the created prompt plus its version-1 record.
type CreateResult struct {
	Prompt  *models.Prompt        `json:"prompt"`
	Version *models.PromptVersion `json:"version"`
}

func (s *Service) Create(ctx context.Context, requester uuid.UUID, in Input) (*CreateResult, error) {
	content, err := in.clean()
	if err != nil {
		return nil, err
	}

	p, err := s.prompts.Create(ctx, requester, content)
	if err != nil {
		return nil, err
	}

	v, err := s.ledger.Append(ctx, p.ID, models.EventCreate, nil, &content)
	if err != nil {
		// A prompt without a version record is invalid state; undo.
		if delErr := s.prompts.Delete(ctx, p.ID); delErr != nil {
			slog.Error("failed to undo prompt create", "prompt_id", p.ID, "error", delErr)
		}
		return nil, err
	}

	s.publish(p, "prompt.created", v.VersionNumber)
	return &CreateResult{Prompt: p, Version: v}, nil
}

// UpdateResult reports either a new version or NoChanges=true when the
// proposed content structurally equals the latest version.
type UpdateResult struct {
	Prompt    *models.Prompt        `json:"prompt"`
	Version   *models.PromptVersion `json:"version,omitempty"`
	NoChanges bool                  `json:"no_changes"`
}

func (s *Service) Update(ctx context.Context, requester, promptID uuid.UUID, in Input) (*UpdateResult, error) {
	content, err := in.clean()
	if err != nil {
		return nil, err
	}

	p, err := s.ownedPrompt(ctx, requester, promptID)
	if err != nil {
		return nil, err
	}

	var v *models.PromptVersion
	var noChanges bool

	err = retry.Do(func() error {
		latest, err := s.ledger.Latest(ctx, promptID)
		if err != nil {
			return err
		}

		before := p.Content()
		if latest != nil && latest.After != nil {
			before = *latest.After
		}
		if content.Equal(before) {
			noChanges = true
			return nil
		}

		v, err = s.ledger.Append(ctx, promptID, models.EventUpdate, &before, &content)
		return err
	},
		retry.Attempts(appendAttempts),
		retry.RetryIf(func(err error) bool { return apperr.IsKind(err, apperr.KindConflict) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	if noChanges {
		return &UpdateResult{Prompt: p, NoChanges: true}, nil
	}

	p.Title = content.Title
	p.Description = content.Description
	p.Tags = content.Tags
	p.CurrentVersion = v.VersionNumber
	if err := s.prompts.Save(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx, promptID)
	s.publish(p, "prompt.updated", v.VersionNumber)
	return &UpdateResult{Prompt: p, Version: v}, nil
}

// ToggleResult reports an archive/restore outcome. AlreadyApplied is
// set when the prompt was in the requested state beforehand.
type ToggleResult struct {
	Prompt         *models.Prompt `json:"prompt"`
	AlreadyApplied bool           `json:"already_applied"`
}

// Archive soft-hides a prompt. No version is appended; archiving is a
// version-number-neutral toggle. Idempotent.
func (s *Service) Archive(ctx context.Context, requester, promptID uuid.UUID) (*ToggleResult, error) {
	return s.setArchived(ctx, requester, promptID, true, "prompt.archived")
}

// Restore reverses Archive. Idempotent.
func (s *Service) Restore(ctx context.Context, requester, promptID uuid.UUID) (*ToggleResult, error) {
	return s.setArchived(ctx, requester, promptID, false, "prompt.restored")
}

func (s *Service) setArchived(ctx context.Context, requester, promptID uuid.UUID, archived bool, action string) (*ToggleResult, error) {
	p, err := s.ownedPrompt(ctx, requester, promptID)
	if err != nil {
		return nil, err
	}

	if p.Archived == archived {
		return &ToggleResult{Prompt: p, AlreadyApplied: true}, nil
	}

	p.Archived = archived
	if err := s.prompts.Save(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx, promptID)
	s.publish(p, action, 0)
	return &ToggleResult{Prompt: p}, nil
}

// Delete hard-deletes a prompt. Versions go first, then the record:
// a crash in between leaves only a versionless prompt, which a retry
// cleans up, never an orphaned version.
func (s *Service) Delete(ctx context.Context, requester, promptID uuid.UUID) error {
	p, err := s.ownedPrompt(ctx, requester, promptID)
	if err != nil {
		return err
	}

	if err := s.ledger.DeleteAllForPrompt(ctx, promptID); err != nil {
		return err
	}
	if err := s.prompts.Delete(ctx, promptID); err != nil {
		return err
	}

	s.invalidate(ctx, promptID)
	s.publish(p, "prompt.deleted", 0)
	return nil
}

// Summary is a list row: current state plus the latest version record.
type Summary struct {
	Prompt *models.Prompt        `json:"prompt"`
	Latest *models.PromptVersion `json:"latest_version,omitempty"`
}

func (s *Service) List(ctx context.Context, requester uuid.UUID, filter store.ListFilter) ([]Summary, error) {
	prompts, err := s.prompts.FindByOwner(ctx, requester, filter)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(prompts))
	for i := range prompts {
		latest, err := s.ledger.Latest(ctx, prompts[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Prompt: &prompts[i], Latest: latest})
	}
	return out, nil
}

// GetLatest returns a prompt's current state with its latest version,
// through the cache when available.
func (s *Service) GetLatest(ctx context.Context, requester, promptID uuid.UUID) (*Summary, error) {
	var cached Summary
	if err := s.cache.Get(ctx, cache.PromptKey(promptID), &cached); err == nil {
		if cached.Prompt.OwnerID != requester {
			return nil, apperr.Forbidden("not the owner of this prompt")
		}
		return &cached, nil
	}

	p, err := s.ownedPrompt(ctx, requester, promptID)
	if err != nil {
		return nil, err
	}
	latest, err := s.ledger.Latest(ctx, promptID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Prompt: p, Latest: latest}
	if err := s.cache.Set(ctx, cache.PromptKey(promptID), summary, cacheTTL); err != nil {
		slog.Warn("cache set failed", "prompt_id", promptID, "error", err)
	}
	return summary, nil
}

// GetAllVersions returns the full ordered history, ascending by version
// number.
func (s *Service) GetAllVersions(ctx context.Context, requester, promptID uuid.UUID) ([]models.PromptVersion, error) {
	if _, err := s.ownedPrompt(ctx, requester, promptID); err != nil {
		return nil, err
	}

	var cached []models.PromptVersion
	if err := s.cache.Get(ctx, cache.VersionsKey(promptID), &cached); err == nil {
		return cached, nil
	}

	versions, err := s.ledger.AllForPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.VersionsKey(promptID), versions, cacheTTL); err != nil {
		slog.Warn("cache set failed", "prompt_id", promptID, "error", err)
	}
	return versions, nil
}

func (s *Service) ownedPrompt(ctx context.Context, requester, promptID uuid.UUID) (*models.Prompt, error) {
	p, err := s.prompts.FindByID(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("prompt not found")
	}
	if p.OwnerID != requester {
		return nil, apperr.Forbidden("not the owner of this prompt")
	}
	return p, nil
}

func (s *Service) invalidate(ctx context.Context, promptID uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.PromptKey(promptID), cache.VersionsKey(promptID)); err != nil {
		slog.Warn("cache invalidation failed", "prompt_id", promptID, "error", err)
	}
}

func (s *Service) publish(p *models.Prompt, action string, versionNumber int) {
	err := s.events.EnqueuePromptEvent(queue.PromptEventPayload{
		PromptID:      p.ID.String(),
		OwnerID:       p.OwnerID.String(),
		Action:        action,
		VersionNumber: versionNumber,
	})
	if err != nil {
		slog.Warn("failed to enqueue prompt event", "action", action, "prompt_id", p.ID, "error", err)
	}
}
