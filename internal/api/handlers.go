package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/stableflow/internal/ledger"
	"github.com/example/stableflow/internal/money"
)

type accountJSON struct {
	Object    string `json:"object"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at"`
}

type accountBalanceJSON struct {
	accountJSON
	Balance          string `json:"balance"`
	FormattedBalance string `json:"formatted_balance"`
}

type entryJSON struct {
	Object        string `json:"object"`
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Direction     string `json:"direction"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at"`
}

type transactionJSON struct {
	Object        string      `json:"object"`
	ID            string      `json:"id"`
	Description   string      `json:"description"`
	ReferenceType string      `json:"reference_type,omitempty"`
	ReferenceID   string      `json:"reference_id,omitempty"`
	CreatedAt     string      `json:"created_at"`
	Entries       []entryJSON `json:"entries"`
}

type listJSON[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

func toAccountJSON(a *ledger.Account) accountJSON {
	return accountJSON{
		Object:    "ledger_account",
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Currency:  string(a.Currency),
		CreatedAt: a.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toTransactionJSON(t *ledger.Transaction) transactionJSON {
	out := transactionJSON{
		Object:        "ledger_transaction",
		ID:            t.ID,
		Description:   t.Description,
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339Nano),
		Entries:       make([]entryJSON, len(t.Entries)),
	}
	for i, e := range t.Entries {
		out.Entries[i] = entryJSON{
			Object:        "ledger_entry",
			ID:            e.ID,
			TransactionID: e.TransactionID,
			AccountID:     e.AccountID,
			Direction:     string(e.Direction),
			Amount:        e.Amount.String(),
			Currency:      string(e.Currency),
			CreatedAt:     e.CreatedAt.Format(time.RFC3339Nano),
		}
	}
	return out
}

type createAccountRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body")
			return
		}

		account, err := deps.Ledger.CreateAccount(r.Context(), ledger.CreateAccountInput{
			ID:       req.ID,
			Name:     req.Name,
			Type:     ledger.AccountType(req.Type),
			Currency: money.Currency(req.Currency),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, toAccountJSON(account))
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := deps.Ledger.GetAccount(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toAccountJSON(account))
	}
}

func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := deps.Ledger.GetAllAccounts(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		data := make([]accountBalanceJSON, len(accounts))
		for i, a := range accounts {
			data[i] = accountBalanceJSON{
				accountJSON:      toAccountJSON(&a.Account),
				Balance:          a.Balance.String(),
				FormattedBalance: money.Format(a.Balance, a.Currency),
			}
		}
		writeJSON(w, r, http.StatusOK, listJSON[accountBalanceJSON]{Object: "list", Data: data})
	}
}

type balanceJSON struct {
	Object          string `json:"object"`
	AccountID       string `json:"account_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	FormattedAmount string `json:"formatted_amount"`
}

func handleGetBalance(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		balance, err := deps.Ledger.GetBalance(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, balanceJSON{
			Object:          "balance",
			AccountID:       id,
			Amount:          balance.Amount.String(),
			Currency:        string(balance.Currency),
			FormattedAmount: money.Format(balance.Amount, balance.Currency),
		})
	}
}

type postEntryRequest struct {
	AccountID string `json:"account_id"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type postTransactionRequest struct {
	Description   string             `json:"description"`
	ReferenceType string             `json:"reference_type"`
	ReferenceID   string             `json:"reference_id"`
	Entries       []postEntryRequest `json:"entries"`
}

func handlePostTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req postTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body")
			return
		}

		input := ledger.TransactionInput{
			Description:   req.Description,
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
			Entries:       make([]ledger.EntryInput, len(req.Entries)),
		}
		for i, e := range req.Entries {
			amount, err := money.ParseMinorUnits(e.Amount)
			if err != nil {
				writeErrorCode(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			input.Entries[i] = ledger.EntryInput{
				AccountID: e.AccountID,
				Direction: ledger.Direction(e.Direction),
				Amount:    amount,
				Currency:  money.Currency(e.Currency),
			}
		}

		txn, err := deps.Ledger.PostTransaction(r.Context(), input)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, toTransactionJSON(txn))
	}
}

func handleTransactionsByReference(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refType := r.URL.Query().Get("reference_type")
		refID := r.URL.Query().Get("reference_id")

		txns, err := deps.Ledger.GetTransactionsByReference(r.Context(), refType, refID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		data := make([]transactionJSON, len(txns))
		for i := range txns {
			data[i] = toTransactionJSON(&txns[i])
		}
		writeJSON(w, r, http.StatusOK, listJSON[transactionJSON]{Object: "list", Data: data})
	}
}

type godCheckCurrencyJSON struct {
	TotalDebits  string `json:"total_debits"`
	TotalCredits string `json:"total_credits"`
	Balanced     bool   `json:"balanced"`
}

type godCheckJSON struct {
	Object     string                          `json:"object"`
	Balanced   bool                            `json:"balanced"`
	Currencies map[string]godCheckCurrencyJSON `json:"currencies"`
	CheckedAt  string                          `json:"checked_at"`
}

func handleGodCheck(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Ledger.GodCheck(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		currencies := make(map[string]godCheckCurrencyJSON, len(result.Currencies))
		for currency, check := range result.Currencies {
			currencies[string(currency)] = godCheckCurrencyJSON{
				TotalDebits:  check.TotalDebits.String(),
				TotalCredits: check.TotalCredits.String(),
				Balanced:     check.Balanced,
			}
		}
		writeJSON(w, r, http.StatusOK, godCheckJSON{
			Object:     "god_check",
			Balanced:   result.Balanced,
			Currencies: currencies,
			CheckedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}
