package prompt

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptvault/promptvault/internal/apperr"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/store"
)

func newTestService() (*Service, *store.MemoryPromptStore, *store.MemoryVersionLedger) {
	prompts := store.NewMemoryPromptStore()
	ledger := store.NewMemoryVersionLedger()
	return NewService(prompts, ledger, nil, nil), prompts, ledger
}

// requireLedgerInvariants checks that the prompt's currentVersion equals
// the highest version number and that versions form a gapless 1..N run.
func requireLedgerInvariants(t *testing.T, svc *Service, promptID uuid.UUID) {
	t.Helper()

	p, err := svc.prompts.FindByID(context.Background(), promptID)
	require.NoError(t, err)
	require.NotNil(t, p)

	versions, err := svc.ledger.AllForPrompt(context.Background(), promptID)
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber, "versions must be gapless from 1")
	}
	assert.Equal(t, versions[len(versions)-1].VersionNumber, p.CurrentVersion,
		"current_version must equal the highest version number")
}

func TestCreate(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	result, err := svc.Create(t.Context(), owner, Input{
		Title:       "A",
		Description: "d",
		Tags:        []string{"x"},
	})
	require.NoError(t, err)

	p := result.Prompt
	assert.Equal(t, owner, p.OwnerID)
	assert.Equal(t, "A", p.Title)
	assert.Equal(t, 1, p.CurrentVersion)
	assert.False(t, p.Archived)

	v := result.Version
	assert.Equal(t, models.EventCreate, v.Event)
	assert.Equal(t, 1, v.VersionNumber)
	assert.Nil(t, v.Before)
	require.NotNil(t, v.After)
	assert.Equal(t, models.PromptContent{Title: "A", Description: "d", Tags: []string{"x"}}, *v.After)

	requireLedgerInvariants(t, svc, p.ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	cases := []struct {
		name string
		in   Input
	}{
		{"missing title", Input{Description: "d"}},
		{"missing description", Input{Title: "t"}},
		{"whitespace title", Input{Title: "   ", Description: "d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(t.Context(), owner, tc.in)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
}

func TestCreateTrimsInput(t *testing.T) {
	svc, _, _ := newTestService()

	result, err := svc.Create(t.Context(), uuid.New(), Input{
		Title:       "  A  ",
		Description: " d ",
		Tags:        []string{" x ", "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A", result.Prompt.Title)
	assert.Equal(t, "d", result.Version.After.Description)
	assert.Equal(t, []string{"x", "y"}, result.Version.After.Tags)
}

func TestUpdateAppendsVersion(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d", Tags: []string{"x"}})
	require.NoError(t, err)
	id := created.Prompt.ID

	result, err := svc.Update(t.Context(), owner, id, Input{Title: "B", Description: "d", Tags: []string{"x"}})
	require.NoError(t, err)
	assert.False(t, result.NoChanges)

	assert.Equal(t, 2, result.Prompt.CurrentVersion)
	assert.Equal(t, "B", result.Prompt.Title)

	v := result.Version
	require.NotNil(t, v)
	assert.Equal(t, models.EventUpdate, v.Event)
	assert.Equal(t, 2, v.VersionNumber)
	require.NotNil(t, v.Before)
	assert.Equal(t, "A", v.Before.Title)
	require.NotNil(t, v.After)
	assert.Equal(t, "B", v.After.Title)

	requireLedgerInvariants(t, svc, id)
}

func TestUpdateNoChanges(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d", Tags: []string{"x"}})
	require.NoError(t, err)
	id := created.Prompt.ID

	_, err = svc.Update(t.Context(), owner, id, Input{Title: "B", Description: "d", Tags: []string{"x"}})
	require.NoError(t, err)

	// Identical payload: success with the no-changes flag, no version
	result, err := svc.Update(t.Context(), owner, id, Input{Title: "B", Description: "d", Tags: []string{"x"}})
	require.NoError(t, err)
	assert.True(t, result.NoChanges)
	assert.Nil(t, result.Version)
	assert.Equal(t, 2, result.Prompt.CurrentVersion)

	versions, err := svc.GetAllVersions(t.Context(), owner, id)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestUpdateTagOrderMatters(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d", Tags: []string{"x", "y"}})
	require.NoError(t, err)

	// Same tag set, different order: counts as a change
	result, err := svc.Update(t.Context(), owner, created.Prompt.ID, Input{Title: "A", Description: "d", Tags: []string{"y", "x"}})
	require.NoError(t, err)
	assert.False(t, result.NoChanges)
	assert.Equal(t, 2, result.Prompt.CurrentVersion)
}

func TestUpdateDetectsChangesAgainstLedger(t *testing.T) {
	svc, prompts, _ := newTestService()
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d", Tags: []string{"x"}})
	require.NoError(t, err)
	id := created.Prompt.ID

	// Drift the live row away from the ledger; the ledger wins.
	p, err := prompts.FindByID(t.Context(), id)
	require.NoError(t, err)
	p.Title = "drifted"
	require.NoError(t, prompts.Save(t.Context(), p))

	result, err := svc.Update(t.Context(), owner, id, Input{Title: "A", Description: "d", Tags: []string{"x"}})
	require.NoError(t, err)
	assert.True(t, result.NoChanges, "content equal to latest afterObject must be a no-op")
}

func TestUpdateChain(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "v1", Description: "d"})
	require.NoError(t, err)
	id := created.Prompt.ID

	for _, title := range []string{"v2", "v3", "v4"} {
		_, err := svc.Update(t.Context(), owner, id, Input{Title: title, Description: "d"})
		require.NoError(t, err)
	}

	versions, err := svc.GetAllVersions(t.Context(), owner, id)
	require.NoError(t, err)
	require.Len(t, versions, 4)

	// Each version's beforeObject equals the previous afterObject
	for i := 1; i < len(versions); i++ {
		require.NotNil(t, versions[i].Before)
		require.NotNil(t, versions[i-1].After)
		assert.True(t, versions[i].Before.Equal(*versions[i-1].After))
	}

	requireLedgerInvariants(t, svc, id)
}

func TestOwnershipEnforced(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	intruder := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d"})
	require.NoError(t, err)
	id := created.Prompt.ID

	_, err = svc.Update(t.Context(), intruder, id, Input{Title: "B", Description: "d"})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = svc.Archive(t.Context(), intruder, id)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = svc.Restore(t.Context(), intruder, id)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	err = svc.Delete(t.Context(), intruder, id)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = svc.GetLatest(t.Context(), intruder, id)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = svc.GetAllVersions(t.Context(), intruder, id)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	requester := uuid.New()
	missing := uuid.New()

	_, err := svc.Update(t.Context(), requester, missing, Input{Title: "B", Description: "d"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	err = svc.Delete(t.Context(), requester, missing)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = svc.GetLatest(t.Context(), requester, missing)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestArchiveRestoreIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d"})
	require.NoError(t, err)
	id := created.Prompt.ID

	result, err := svc.Archive(t.Context(), owner, id)
	require.NoError(t, err)
	assert.False(t, result.AlreadyApplied)
	assert.True(t, result.Prompt.Archived)

	result, err = svc.Archive(t.Context(), owner, id)
	require.NoError(t, err)
	assert.True(t, result.AlreadyApplied)
	assert.True(t, result.Prompt.Archived)

	// Archive never appends a version
	versions, err := svc.GetAllVersions(t.Context(), owner, id)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
	assert.Equal(t, 1, result.Prompt.CurrentVersion)

	result, err = svc.Restore(t.Context(), owner, id)
	require.NoError(t, err)
	assert.False(t, result.AlreadyApplied)
	assert.False(t, result.Prompt.Archived)

	result, err = svc.Restore(t.Context(), owner, id)
	require.NoError(t, err)
	assert.True(t, result.AlreadyApplied)
}

func TestArchivedPromptStillEditable(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d"})
	require.NoError(t, err)
	id := created.Prompt.ID

	_, err = svc.Archive(t.Context(), owner, id)
	require.NoError(t, err)

	result, err := svc.Update(t.Context(), owner, id, Input{Title: "B", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Prompt.CurrentVersion)
	assert.True(t, result.Prompt.Archived)
}

func TestDeleteCascades(t *testing.T) {
	svc, prompts, ledger := newTestService()
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d"})
	require.NoError(t, err)
	id := created.Prompt.ID

	_, err = svc.Update(t.Context(), owner, id, Input{Title: "B", Description: "d"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(t.Context(), owner, id))

	p, err := prompts.FindByID(t.Context(), id)
	require.NoError(t, err)
	assert.Nil(t, p)

	versions, err := ledger.AllForPrompt(t.Context(), id)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestList(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	other := uuid.New()

	first, err := svc.Create(t.Context(), owner, Input{Title: "alpha prompt", Description: "d", Tags: []string{"go"}})
	require.NoError(t, err)
	second, err := svc.Create(t.Context(), owner, Input{Title: "beta prompt", Description: "d", Tags: []string{"sql"}})
	require.NoError(t, err)
	_, err = svc.Create(t.Context(), other, Input{Title: "not mine", Description: "d"})
	require.NoError(t, err)

	_, err = svc.Archive(t.Context(), owner, first.Prompt.ID)
	require.NoError(t, err)

	all, err := svc.List(t.Context(), owner, store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, s := range all {
		assert.Equal(t, owner, s.Prompt.OwnerID)
		require.NotNil(t, s.Latest, "list attaches the latest version")
	}
	// updated_at descending: the archived (most recently touched) first
	assert.Equal(t, first.Prompt.ID, all[0].Prompt.ID)

	archived := true
	onlyArchived, err := svc.List(t.Context(), owner, store.ListFilter{Archived: &archived})
	require.NoError(t, err)
	require.Len(t, onlyArchived, 1)
	assert.Equal(t, first.Prompt.ID, onlyArchived[0].Prompt.ID)

	bySearch, err := svc.List(t.Context(), owner, store.ListFilter{Search: "BETA"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, second.Prompt.ID, bySearch[0].Prompt.ID)

	byTagSearch, err := svc.List(t.Context(), owner, store.ListFilter{Search: "sql"})
	require.NoError(t, err)
	require.Len(t, byTagSearch, 1)
	assert.Equal(t, second.Prompt.ID, byTagSearch[0].Prompt.ID)

	byTag, err := svc.List(t.Context(), owner, store.ListFilter{Tag: "go"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, first.Prompt.ID, byTag[0].Prompt.ID)
}

// conflictLedger fails the first n appends with a conflict, standing in
// for a concurrent writer claiming the same version number.
type conflictLedger struct {
	store.VersionLedger
	remaining int
}

func (l *conflictLedger) Append(ctx context.Context, promptID uuid.UUID, event models.VersionEvent, before, after *models.PromptContent) (*models.PromptVersion, error) {
	if l.remaining > 0 {
		l.remaining--
		return nil, apperr.Conflict("concurrent version append")
	}
	return l.VersionLedger.Append(ctx, promptID, event, before, after)
}

func TestUpdateRetriesOnConflict(t *testing.T) {
	prompts := store.NewMemoryPromptStore()
	inner := store.NewMemoryVersionLedger()
	ledger := &conflictLedger{VersionLedger: inner, remaining: 0}
	svc := NewService(prompts, ledger, nil, nil)
	owner := uuid.New()

	created, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d"})
	require.NoError(t, err)
	id := created.Prompt.ID

	// One collision: the retry wins
	ledger.remaining = 1
	result, err := svc.Update(t.Context(), owner, id, Input{Title: "B", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Prompt.CurrentVersion)

	// Persistent collision: surfaced as a conflict
	ledger.remaining = 100
	_, err = svc.Update(t.Context(), owner, id, Input{Title: "C", Description: "d"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// The failed update left no partial state behind
	p, err := prompts.FindByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentVersion)
	assert.Equal(t, "B", p.Title)
}

func TestCreateUndoneWhenAppendFails(t *testing.T) {
	prompts := store.NewMemoryPromptStore()
	ledger := &conflictLedger{VersionLedger: store.NewMemoryVersionLedger(), remaining: 100}
	svc := NewService(prompts, ledger, nil, nil)
	owner := uuid.New()

	_, err := svc.Create(t.Context(), owner, Input{Title: "A", Description: "d"})
	require.Error(t, err)

	// No versionless prompt may survive a failed create
	all, err := prompts.FindByOwner(t.Context(), owner, store.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}
