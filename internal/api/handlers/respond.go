package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/promptvault/promptvault/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError maps taxonomy errors to their status and body. Anything
// outside the taxonomy is logged and surfaced as a generic 500 so
// internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind == apperr.KindStorage {
		slog.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: errorDetail{Kind: "internal_error", Message: "internal server error"},
		})
		return
	}

	writeJSON(w, apperr.HTTPStatus(e), errorBody{
		Error: errorDetail{Kind: string(e.Kind), Message: e.Message},
	})
}
