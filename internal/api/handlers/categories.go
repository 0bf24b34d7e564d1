package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iam-hbk/accounting-on-the-go/internal/api/middleware"
	"github.com/iam-hbk/accounting-on-the-go/internal/ledger"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
)

// CategoriesHandler handles category CRUD endpoints.
type CategoriesHandler struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(ledgerService *ledger.Service, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{ledger: ledgerService, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	categories, err := h.ledger.ListCategories(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	category, err := h.ledger.CreateCategory(r.Context(), userID, req.Name, req.Color)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, category)
}

// UpdateCategory handles PUT /api/categories/{id}
func (h *CategoriesHandler) UpdateCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	category, err := h.ledger.UpdateCategory(r.Context(), userID, categoryID, req.Name, req.Color)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("category_id", categoryID).Msg("Failed to update category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	err := h.ledger.DeleteCategory(r.Context(), userID, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("category_id", categoryID).Msg("Failed to delete category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
