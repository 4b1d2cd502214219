package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/stableflow/internal/ledger"
	"github.com/example/stableflow/internal/security"
)

type errorBody struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if cid := security.CorrelationIDFromContext(r.Context()); cid != "" {
		w.Header().Set(security.CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	writeJSON(w, r, status, errorEnvelope{Error: errorBody{Type: errType, Message: message}})
}

// writeError maps the ledger error taxonomy onto stable machine-readable
// codes. An imbalance is a 500: it means the calling service proposed
// unbalanced entries, which is a bug on our side of the API, not theirs.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *ledger.ValidationError
		imbalance  *ledger.ImbalanceError
		conflict   *ledger.ConflictError
		notFound   *ledger.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		writeErrorCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR", validation.Message)
	case errors.As(err, &notFound):
		writeErrorCode(w, r, http.StatusNotFound, "NOT_FOUND", notFound.Message)
	case errors.As(err, &conflict):
		writeErrorCode(w, r, http.StatusConflict, "CONFLICT", conflict.Message)
	case errors.As(err, &imbalance):
		writeJSON(w, r, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Type:    "INTERNAL_ERROR",
			Message: "Ledger transaction does not balance: debits must equal credits",
			Details: map[string]any{
				"currency": imbalance.Currency,
				"debits":   imbalance.Debits.String(),
				"credits":  imbalance.Credits.String(),
			},
		}})
	default:
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
