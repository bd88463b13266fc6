package models

import (
	"time"

	"github.com/google/uuid"
)

// VersionEvent records which operation produced a version.
type VersionEvent string

const (
	EventCreate VersionEvent = "create"
	EventUpdate VersionEvent = "update"
	EventDelete VersionEvent = "delete"
)

// PromptContent is the snapshot unit stored in version records. Tags are
// an ordered sequence; two contents differ if their tags differ in order.
type PromptContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Equal compares contents structurally, tags as ordered sequences.
func (c PromptContent) Equal(other PromptContent) bool {
	if c.Title != other.Title || c.Description != other.Description {
		return false
	}
	if len(c.Tags) != len(other.Tags) {
		return false
	}
	for i := range c.Tags {
		if c.Tags[i] != other.Tags[i] {
			return false
		}
	}
	return true
}

// Prompt is the current-state record. The version ledger, not this row,
// is the source of truth for change detection; title/description/tags
// here mirror the latest version's afterObject for listing and search.
type Prompt struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OwnerID        uuid.UUID `json:"owner_id" db:"owner_id"`
	Title          string    `json:"title" db:"title"`
	Description    string    `json:"description" db:"description"`
	Tags           []string  `json:"tags" db:"tags"`
	Archived       bool      `json:"archived" db:"archived"`
	CurrentVersion int       `json:"current_version" db:"current_version"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Content returns the prompt's fields as a snapshot value.
func (p *Prompt) Content() PromptContent {
	return PromptContent{Title: p.Title, Description: p.Description, Tags: p.Tags}
}

// PromptVersion is an immutable ledger entry. Before is nil for the
// create event; versions for a prompt form a gapless sequence from 1.
type PromptVersion struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	PromptID      uuid.UUID      `json:"prompt_id" db:"prompt_id"`
	VersionNumber int            `json:"version_number" db:"version_number"`
	Event         VersionEvent   `json:"event" db:"event"`
	Before        *PromptContent `json:"before_object,omitempty" db:"before_object"`
	After         *PromptContent `json:"after_object,omitempty" db:"after_object"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}
