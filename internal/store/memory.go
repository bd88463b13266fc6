package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/apperr"
	"github.com/promptvault/promptvault/internal/models"
)

// MemoryPromptStore mirrors the Postgres store's semantics in process
// memory. It backs the tests and the degraded no-database mode.
type MemoryPromptStore struct {
	mu      sync.RWMutex
	prompts map[uuid.UUID]*models.Prompt
	seq     uint64
	touched map[uuid.UUID]uint64
}

func NewMemoryPromptStore() *MemoryPromptStore {
	return &MemoryPromptStore{
		prompts: make(map[uuid.UUID]*models.Prompt),
		touched: make(map[uuid.UUID]uint64),
	}
}

func (s *MemoryPromptStore) Create(ctx context.Context, ownerID uuid.UUID, content models.PromptContent) (*models.Prompt, error) {
	title := strings.TrimSpace(content.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	now := time.Now().UTC()
	p := &models.Prompt{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Title:          title,
		Description:    content.Description,
		Tags:           copyTags(content.Tags),
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.ID] = p
	s.seq++
	s.touched[p.ID] = s.seq

	return copyPrompt(p), nil
}

func (s *MemoryPromptStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[id]
	if !ok {
		return nil, nil
	}
	return copyPrompt(p), nil
}

func (s *MemoryPromptStore) FindByOwner(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Prompt
	for _, p := range s.prompts {
		if p.OwnerID != ownerID {
			continue
		}
		if filter.Archived != nil && p.Archived != *filter.Archived {
			continue
		}
		if filter.Search != "" && !matchesSearch(p, filter.Search) {
			continue
		}
		if filter.Tag != "" && !hasTag(p.Tags, filter.Tag) {
			continue
		}
		out = append(out, *copyPrompt(p))
	}

	// updated_at descending, most recently touched first on ties
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return s.touched[out[i].ID] > s.touched[out[j].ID]
	})
	return out, nil
}

func (s *MemoryPromptStore) Save(ctx context.Context, p *models.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.prompts[p.ID]
	if !ok {
		return apperr.NotFound("prompt not found")
	}

	existing.Title = p.Title
	existing.Description = p.Description
	existing.Tags = copyTags(p.Tags)
	existing.Archived = p.Archived
	existing.CurrentVersion = p.CurrentVersion
	existing.UpdatedAt = time.Now().UTC()
	p.UpdatedAt = existing.UpdatedAt

	s.seq++
	s.touched[p.ID] = s.seq
	return nil
}

func (s *MemoryPromptStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prompts, id)
	delete(s.touched, id)
	return nil
}

func matchesSearch(p *models.Prompt, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(p.Title), needle) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func copyPrompt(p *models.Prompt) *models.Prompt {
	cp := *p
	cp.Tags = copyTags(p.Tags)
	return &cp
}

func copyTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// MemoryVersionLedger keeps per-prompt version sequences under a single
// mutex, which stands in for the unique index the Postgres ledger
// relies on.
type MemoryVersionLedger struct {
	mu       sync.RWMutex
	versions map[uuid.UUID][]models.PromptVersion
}

func NewMemoryVersionLedger() *MemoryVersionLedger {
	return &MemoryVersionLedger{versions: make(map[uuid.UUID][]models.PromptVersion)}
}

func (l *MemoryVersionLedger) Append(ctx context.Context, promptID uuid.UUID, event models.VersionEvent, before, after *models.PromptContent) (*models.PromptVersion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.versions[promptID]
	next := 1
	if n := len(seq); n > 0 {
		next = seq[n-1].VersionNumber + 1
	}

	v := models.PromptVersion{
		ID:            uuid.New(),
		PromptID:      promptID,
		VersionNumber: next,
		Event:         event,
		Before:        copyContent(before),
		After:         copyContent(after),
		CreatedAt:     time.Now().UTC(),
	}
	l.versions[promptID] = append(seq, v)

	return copyVersion(&v), nil
}

func (l *MemoryVersionLedger) Latest(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seq := l.versions[promptID]
	if len(seq) == 0 {
		return nil, nil
	}
	return copyVersion(&seq[len(seq)-1]), nil
}

func (l *MemoryVersionLedger) AllForPrompt(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seq := l.versions[promptID]
	out := make([]models.PromptVersion, 0, len(seq))
	for i := range seq {
		out = append(out, *copyVersion(&seq[i]))
	}
	return out, nil
}

func (l *MemoryVersionLedger) DeleteAllForPrompt(ctx context.Context, promptID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.versions, promptID)
	return nil
}

func copyContent(c *models.PromptContent) *models.PromptContent {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Tags = copyTags(c.Tags)
	return &cp
}

func copyVersion(v *models.PromptVersion) *models.PromptVersion {
	cp := *v
	cp.Before = copyContent(v.Before)
	cp.After = copyContent(v.After)
	return &cp
}
