package store

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptvault/promptvault/internal/apperr"
	"github.com/promptvault/promptvault/internal/models"
)

func TestMemoryPromptStoreCreate(t *testing.T) {
	s := NewMemoryPromptStore()
	owner := uuid.New()

	p, err := s.Create(t.Context(), owner, models.PromptContent{Title: "  hello  ", Description: "d", Tags: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Title, "title is trimmed")
	assert.Equal(t, 1, p.CurrentVersion)
	assert.NotEqual(t, uuid.Nil, p.ID)

	_, err = s.Create(t.Context(), owner, models.PromptContent{Title: "   "})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestMemoryPromptStoreFindByID(t *testing.T) {
	s := NewMemoryPromptStore()

	p, err := s.FindByID(t.Context(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, p, "absent prompt is (nil, nil), not an error")

	created, err := s.Create(t.Context(), uuid.New(), models.PromptContent{Title: "t", Description: "d"})
	require.NoError(t, err)

	found, err := s.FindByID(t.Context(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	// Mutating the returned copy must not leak into the store
	found.Title = "mutated"
	again, err := s.FindByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", again.Title)
}

func TestMemoryPromptStoreSaveMissing(t *testing.T) {
	s := NewMemoryPromptStore()
	err := s.Save(t.Context(), &models.Prompt{ID: uuid.New()})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestMemoryLedgerGaplessSequence(t *testing.T) {
	l := NewMemoryVersionLedger()
	promptID := uuid.New()

	after := &models.PromptContent{Title: "t", Description: "d"}
	for i := 1; i <= 5; i++ {
		v, err := l.Append(t.Context(), promptID, models.EventUpdate, nil, after)
		require.NoError(t, err)
		assert.Equal(t, i, v.VersionNumber)
	}

	versions, err := l.AllForPrompt(t.Context(), promptID)
	require.NoError(t, err)
	require.Len(t, versions, 5)
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber)
	}

	latest, err := l.Latest(t.Context(), promptID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 5, latest.VersionNumber)
}

func TestMemoryLedgerLatestEmpty(t *testing.T) {
	l := NewMemoryVersionLedger()
	latest, err := l.Latest(t.Context(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMemoryLedgerConcurrentAppends(t *testing.T) {
	l := NewMemoryVersionLedger()
	promptID := uuid.New()
	after := &models.PromptContent{Title: "t"}

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := l.Append(t.Context(), promptID, models.EventUpdate, nil, after)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	versions, err := l.AllForPrompt(t.Context(), promptID)
	require.NoError(t, err)
	require.Len(t, versions, n)

	seen := make(map[int]bool, n)
	for _, v := range versions {
		assert.False(t, seen[v.VersionNumber], "version numbers must be unique")
		seen[v.VersionNumber] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[i], "sequence must be gapless")
	}
}

func TestMemoryLedgerDeleteAll(t *testing.T) {
	l := NewMemoryVersionLedger()
	promptID := uuid.New()

	_, err := l.Append(t.Context(), promptID, models.EventCreate, nil, &models.PromptContent{Title: "t"})
	require.NoError(t, err)

	require.NoError(t, l.DeleteAllForPrompt(t.Context(), promptID))

	versions, err := l.AllForPrompt(t.Context(), promptID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	// Numbering restarts for a fresh sequence
	v, err := l.Append(t.Context(), promptID, models.EventCreate, nil, &models.PromptContent{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
}

func TestMemoryLedgerSnapshotsAreImmutable(t *testing.T) {
	l := NewMemoryVersionLedger()
	promptID := uuid.New()

	after := &models.PromptContent{Title: "t", Tags: []string{"a"}}
	_, err := l.Append(t.Context(), promptID, models.EventCreate, nil, after)
	require.NoError(t, err)

	// Mutating the caller's content after the append must not change
	// the stored snapshot.
	after.Tags[0] = "changed"

	latest, err := l.Latest(t.Context(), promptID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, latest.After.Tags)
}

func TestMemoryPromptStoreFilters(t *testing.T) {
	s := NewMemoryPromptStore()
	owner := uuid.New()

	mk := func(title string, tags ...string) *models.Prompt {
		p, err := s.Create(t.Context(), owner, models.PromptContent{Title: title, Description: "d", Tags: tags})
		require.NoError(t, err)
		return p
	}

	a := mk("SQL cheatsheet", "database", "reference")
	b := mk("Go review prompt", "golang")
	c := mk("Archived thing", "golang")

	cp, err := s.FindByID(t.Context(), c.ID)
	require.NoError(t, err)
	cp.Archived = true
	require.NoError(t, s.Save(t.Context(), cp))

	// Case-insensitive title search
	got, err := s.FindByOwner(t.Context(), owner, ListFilter{Search: "sql"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	// Search also matches tags
	got, err = s.FindByOwner(t.Context(), owner, ListFilter{Search: "GOLANG"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Exact tag membership
	got, err = s.FindByOwner(t.Context(), owner, ListFilter{Tag: "golang"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.FindByOwner(t.Context(), owner, ListFilter{Tag: "gol"})
	require.NoError(t, err)
	assert.Empty(t, got, "tag filter is exact, not substring")

	// Archived filter
	active := false
	got, err = s.FindByOwner(t.Context(), owner, ListFilter{Archived: &active})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, p := range got {
		assert.False(t, p.Archived)
	}

	// Most recently updated first
	got, err = s.FindByOwner(t.Context(), owner, ListFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
	assert.Equal(t, a.ID, got[2].ID)
}
