package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/iam-hbk/accounting-on-the-go/internal/api/middleware"
	"github.com/iam-hbk/accounting-on-the-go/internal/ledger"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
)

// DefaultPageSize is used when the client does not ask for a page size.
const DefaultPageSize = 20

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ledgerService *ledger.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{ledger: ledgerService, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	page, err := h.ledger.ListTransactions(r.Context(), userID, listOptionsFromQuery(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, page)
}

// ListUncategorized handles GET /api/transactions/uncategorized
func (h *TransactionsHandler) ListUncategorized(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	page, err := h.ledger.ListUncategorized(r.Context(), userID, listOptionsFromQuery(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list uncategorized transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, page)
}

// CountTransactions handles GET /api/transactions/count
func (h *TransactionsHandler) CountTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var categoryID *string
	if v := r.URL.Query().Get("category_id"); v != "" {
		categoryID = &v
	}

	count, err := h.ledger.CountTransactions(r.Context(), userID, categoryID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to count transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

// UpdateCategory handles PATCH /api/transactions/{id}/category
func (h *TransactionsHandler) UpdateCategory(w http.ResponseWriter, r *http.Request, transactionID string) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req struct {
		CategoryID   *string `json:"categoryId"`
		CategoryNote *string `json:"categoryNote"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.ledger.UpdateTransactionCategory(r.Context(), userID, transactionID, req.CategoryID, req.CategoryNote)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", transactionID).Msg("Failed to update transaction category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func listOptionsFromQuery(r *http.Request) ledger.ListOptions {
	q := r.URL.Query()

	opts := ledger.ListOptions{
		SortField: store.SortField(q.Get("sort_by")),
		SortOrder: store.SortOrder(q.Get("sort_order")),
		Cursor:    q.Get("cursor"),
		NumItems:  DefaultPageSize,
	}
	if v := q.Get("category_id"); v != "" {
		opts.CategoryID = &v
	}
	if v := q.Get("num_items"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.NumItems = n
		}
	}
	return opts
}
