package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptvault/promptvault/internal/apperr"
	"github.com/promptvault/promptvault/internal/auth"
	"github.com/promptvault/promptvault/internal/prompt"
	"github.com/promptvault/promptvault/internal/store"
)

type PromptHandler struct {
	svc *prompt.Service
}

func NewPromptHandler(svc *prompt.Service) *PromptHandler {
	return &PromptHandler{svc: svc}
}

func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Create(r.Context(), auth.RequesterIDFromContext(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *PromptHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Update(r.Context(), auth.RequesterIDFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PromptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), auth.RequesterIDFromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *PromptHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.svc.Archive)
}

func (h *PromptHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.svc.Restore)
}

func (h *PromptHandler) toggle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, requester, id uuid.UUID) (*prompt.ToggleResult, error)) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}

	result, err := op(r.Context(), auth.RequesterIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Search: q.Get("search"),
		Tag:    q.Get("tag"),
	}
	if v := q.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, apperr.Validation("archived must be true or false"))
			return
		}
		filter.Archived = &archived
	}

	prompts, err := h.svc.List(r.Context(), auth.RequesterIDFromContext(r.Context()), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"prompts": prompts})
}

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.GetLatest(r.Context(), auth.RequesterIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *PromptHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}

	versions, err := h.svc.GetAllVersions(r.Context(), auth.RequesterIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

func promptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperr.Validation("invalid prompt id"))
		return uuid.Nil, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (prompt.Input, bool) {
	// Decode into a raw shape first so a tags field that is not an
	// array of strings reads as a validation error, not a bare 400.
	var raw struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Tags        json.RawMessage `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return prompt.Input{}, false
	}

	in := prompt.Input{Title: raw.Title, Description: raw.Description}
	if len(raw.Tags) > 0 {
		if err := json.Unmarshal(raw.Tags, &in.Tags); err != nil {
			writeError(w, apperr.Validation("tags must be an array of strings"))
			return prompt.Input{}, false
		}
	}
	return in, true
}
