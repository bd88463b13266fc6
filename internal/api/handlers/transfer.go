package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/promptvault/promptvault/internal/apperr"
	"github.com/promptvault/promptvault/internal/auth"
	"github.com/promptvault/promptvault/internal/prompt"
)

// TransferHandler serves bulk export and import of a user's vault.
type TransferHandler struct {
	svc *prompt.Service
}

func NewTransferHandler(svc *prompt.Service) *TransferHandler {
	return &TransferHandler{svc: svc}
}

func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	exports, err := h.svc.Export(r.Context(), auth.RequesterIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"prompts": exports})
}

func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	var items []prompt.ImportItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeError(w, apperr.Validation("request body must be an array of import items"))
		return
	}

	result, err := h.svc.Import(r.Context(), auth.RequesterIDFromContext(r.Context()), items)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
