package handlers

import (
	"net/http"
	"strconv"

	"github.com/promptvault/promptvault/internal/apperr"
	"github.com/promptvault/promptvault/internal/audit"
	"github.com/promptvault/promptvault/internal/auth"
)

type AuditHandler struct {
	svc *audit.Service
}

func NewAuditHandler(svc *audit.Service) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List returns the requester's own audit trail, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeError(w, apperr.Storage("audit log unavailable", nil))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	logs, err := h.svc.ListForUser(r.Context(), auth.RequesterIDFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, apperr.Storage("list audit logs", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs})
}
