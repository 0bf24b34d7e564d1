// Package api assembles the HTTP surface: route table plus middleware
// chain. Kept separate from cmd/api so handler tests can run against the
// exact production routing.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iam-hbk/accounting-on-the-go/internal/api/handlers"
	"github.com/iam-hbk/accounting-on-the-go/internal/api/middleware"
	"github.com/iam-hbk/accounting-on-the-go/internal/auth"
	"github.com/iam-hbk/accounting-on-the-go/internal/ingest"
	"github.com/iam-hbk/accounting-on-the-go/internal/ledger"
)

// Deps carries everything the route table needs.
type Deps struct {
	Auth   *auth.Service
	Ledger *ledger.Service
	Ingest *ingest.Service
	Log    zerolog.Logger
}

// NewRouter builds the full handler chain.
func NewRouter(deps Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Log)
	transactionsHandler := handlers.NewTransactionsHandler(deps.Ledger, deps.Log)
	categoriesHandler := handlers.NewCategoriesHandler(deps.Ledger, deps.Log)
	statementsHandler := handlers.NewStatementsHandler(deps.Ingest, deps.Log)

	mux := http.NewServeMux()

	// Auth endpoints
	mux.HandleFunc("/api/auth/signup", postOnly(authHandler.SignUp))
	mux.HandleFunc("/api/auth/signin", postOnly(authHandler.SignIn))
	mux.HandleFunc("/api/auth/anonymous", postOnly(authHandler.SignInAnonymous))
	mux.HandleFunc("/api/auth/signout", postOnly(authHandler.SignOut))
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			authHandler.Me(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Statement endpoints
	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			statementsHandler.ListStatements(w, r)
		case http.MethodPost:
			statementsHandler.UploadStatement(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Transaction endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/api/transactions/count", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.CountTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/api/transactions/uncategorized", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListUncategorized(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		// PATCH /api/transactions/{id}/category
		rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		id, ok := strings.CutSuffix(rest, "/category")
		if !ok || id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method == http.MethodPatch {
			transactionsHandler.UpdateCategory(w, r, id)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Category endpoints
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			categoriesHandler.ListCategories(w, r)
		case http.MethodPost:
			categoriesHandler.CreateCategory(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/api/categories/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/categories/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodPut:
			categoriesHandler.UpdateCategory(w, r, id)
		case http.MethodDelete:
			categoriesHandler.DeleteCategory(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(deps.Log)(
		middleware.Logger(deps.Log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(deps.Auth)(mux),
				),
			),
		),
	)
}

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}
