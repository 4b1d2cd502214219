// Package api wraps the ledger core in the thin REST layer the dashboard
// and merchant services consume. Amounts cross this boundary as
// minor-unit decimal strings, never JSON numbers.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/stableflow/internal/ledger"
	"github.com/example/stableflow/internal/security"
	"github.com/example/stableflow/pkg/audit"
)

// Ledger is the slice of the ledger service the API needs.
type Ledger interface {
	CreateAccount(ctx context.Context, input ledger.CreateAccountInput) (*ledger.Account, error)
	GetAccount(ctx context.Context, id string) (*ledger.Account, error)
	GetAllAccounts(ctx context.Context) ([]ledger.AccountBalance, error)
	GetBalance(ctx context.Context, accountID string) (*ledger.Balance, error)
	PostTransaction(ctx context.Context, input ledger.TransactionInput) (*ledger.Transaction, error)
	GetTransactionsByReference(ctx context.Context, referenceType, referenceID string) ([]ledger.Transaction, error)
	GodCheck(ctx context.Context) (*ledger.GodCheckResult, error)
}

// Auditor records write operations on the hash-chained audit trail.
type Auditor interface {
	Append(payload string) *audit.Record
}

// Dependencies wires the router.
type Dependencies struct {
	Logger  *slog.Logger
	Ledger  Ledger
	Auditor Auditor
}

// NewRouter builds the HTTP surface.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	if deps.Auditor != nil {
		r.Use(AuditMiddleware(deps.Auditor))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1/ledger", func(r chi.Router) {
		r.Get("/accounts", handleListAccounts(deps))
		r.Post("/accounts", handleCreateAccount(deps))
		r.Get("/accounts/{id}", handleGetAccount(deps))
		r.Get("/accounts/{id}/balance", handleGetBalance(deps))
		r.Post("/transactions", handlePostTransaction(deps))
		r.Get("/transactions", handleTransactionsByReference(deps))
		r.Get("/god-check", handleGodCheck(deps))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}
