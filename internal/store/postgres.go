package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptvault/promptvault/internal/apperr"
	"github.com/promptvault/promptvault/internal/models"
)

const pgUniqueViolation = "23505"

type PostgresPromptStore struct {
	db *pgxpool.Pool
}

func NewPostgresPromptStore(db *pgxpool.Pool) *PostgresPromptStore {
	return &PostgresPromptStore{db: db}
}

func (s *PostgresPromptStore) Create(ctx context.Context, ownerID uuid.UUID, content models.PromptContent) (*models.Prompt, error) {
	title := strings.TrimSpace(content.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	p := models.Prompt{
		OwnerID:     ownerID,
		Title:       title,
		Description: content.Description,
		Tags:        content.Tags,
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO prompts (owner_id, title, description, tags)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, current_version, archived, created_at, updated_at`,
		ownerID, title, p.Description, p.Tags,
	).Scan(&p.ID, &p.CurrentVersion, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, apperr.Storage("insert prompt", err)
	}

	return &p, nil
}

func (s *PostgresPromptStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var p models.Prompt
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, title, description, tags, archived, current_version, created_at, updated_at
		 FROM prompts WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Tags, &p.Archived, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("get prompt", err)
	}
	return &p, nil
}

func (s *PostgresPromptStore) FindByOwner(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]models.Prompt, error) {
	query := `SELECT id, owner_id, title, description, tags, archived, current_version, created_at, updated_at
			  FROM prompts WHERE owner_id = $1`
	args := []interface{}{ownerID}
	argIdx := 2

	if filter.Archived != nil {
		query += fmt.Sprintf(" AND archived = $%d", argIdx)
		args = append(args, *filter.Archived)
		argIdx++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND (title ILIKE $%d OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE $%d))", argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}
	if filter.Tag != "" {
		query += fmt.Sprintf(" AND $%d = ANY(tags)", argIdx)
		args = append(args, filter.Tag)
		argIdx++
	}

	query += " ORDER BY updated_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("list prompts", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Tags, &p.Archived, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperr.Storage("scan prompt", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

func (s *PostgresPromptStore) Save(ctx context.Context, p *models.Prompt) error {
	err := s.db.QueryRow(ctx,
		`UPDATE prompts
		 SET title = $2, description = $3, tags = $4, archived = $5, current_version = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, p.Title, p.Description, p.Tags, p.Archived, p.CurrentVersion,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("prompt not found")
	}
	if err != nil {
		return apperr.Storage("save prompt", err)
	}
	return nil
}

func (s *PostgresPromptStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM prompts WHERE id = $1", id); err != nil {
		return apperr.Storage("delete prompt", err)
	}
	return nil
}

type PostgresVersionLedger struct {
	db *pgxpool.Pool
}

func NewPostgresVersionLedger(db *pgxpool.Pool) *PostgresVersionLedger {
	return &PostgresVersionLedger{db: db}
}

func (l *PostgresVersionLedger) Append(ctx context.Context, promptID uuid.UUID, event models.VersionEvent, before, after *models.PromptContent) (*models.PromptVersion, error) {
	beforeJSON, err := marshalContent(before)
	if err != nil {
		return nil, err
	}
	afterJSON, err := marshalContent(after)
	if err != nil {
		return nil, err
	}

	v := models.PromptVersion{
		PromptID: promptID,
		Event:    event,
		Before:   before,
		After:    after,
	}

	// The subselect and the unique index on (prompt_id, version_number)
	// together make the number assignment atomic: a concurrent append
	// that computed the same number fails with a unique violation.
	err = l.db.QueryRow(ctx,
		`INSERT INTO prompt_versions (prompt_id, version_number, event, before_object, after_object)
		 VALUES ($1,
		         (SELECT COALESCE(MAX(version_number), 0) + 1 FROM prompt_versions WHERE prompt_id = $1),
		         $2, $3, $4)
		 RETURNING id, version_number, created_at`,
		promptID, event, beforeJSON, afterJSON,
	).Scan(&v.ID, &v.VersionNumber, &v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperr.Conflict("concurrent version append")
		}
		return nil, apperr.Storage("insert version", err)
	}

	return &v, nil
}

func (l *PostgresVersionLedger) Latest(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	v, err := l.scanOne(l.db.QueryRow(ctx,
		`SELECT id, prompt_id, version_number, event, before_object, after_object, created_at
		 FROM prompt_versions WHERE prompt_id = $1
		 ORDER BY version_number DESC LIMIT 1`, promptID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage("get latest version", err)
	}
	return v, nil
}

func (l *PostgresVersionLedger) AllForPrompt(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error) {
	rows, err := l.db.Query(ctx,
		`SELECT id, prompt_id, version_number, event, before_object, after_object, created_at
		 FROM prompt_versions WHERE prompt_id = $1
		 ORDER BY version_number ASC`, promptID)
	if err != nil {
		return nil, apperr.Storage("list versions", err)
	}
	defer rows.Close()

	var versions []models.PromptVersion
	for rows.Next() {
		v, err := l.scanOne(rows)
		if err != nil {
			return nil, apperr.Storage("scan version", err)
		}
		versions = append(versions, *v)
	}
	return versions, nil
}

func (l *PostgresVersionLedger) DeleteAllForPrompt(ctx context.Context, promptID uuid.UUID) error {
	if _, err := l.db.Exec(ctx, "DELETE FROM prompt_versions WHERE prompt_id = $1", promptID); err != nil {
		return apperr.Storage("delete versions", err)
	}
	return nil
}

func (l *PostgresVersionLedger) scanOne(row pgx.Row) (*models.PromptVersion, error) {
	var v models.PromptVersion
	var beforeJSON, afterJSON []byte
	if err := row.Scan(&v.ID, &v.PromptID, &v.VersionNumber, &v.Event, &beforeJSON, &afterJSON, &v.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if v.Before, err = unmarshalContent(beforeJSON); err != nil {
		return nil, err
	}
	if v.After, err = unmarshalContent(afterJSON); err != nil {
		return nil, err
	}
	return &v, nil
}

func marshalContent(c *models.PromptContent) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	return data, nil
}

func unmarshalContent(data []byte) (*models.PromptContent, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var c models.PromptContent
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return &c, nil
}
