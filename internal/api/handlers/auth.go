package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iam-hbk/accounting-on-the-go/internal/api/middleware"
	"github.com/iam-hbk/accounting-on-the-go/internal/auth"
	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
)

// AuthHandler handles sign-up, sign-in and session endpoints.
type AuthHandler struct {
	auth *auth.Service
	log  zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *auth.Service, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, log: log}
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// SignUp handles POST /api/auth/signup. When the request carries a valid
// anonymous session, that account is upgraded in place and keeps its
// records and token.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, token, err := h.auth.SignUp(r.Context(), middleware.BearerToken(r), req.Email, req.Password, req.Name)
	if errors.Is(err, auth.ErrEmailTaken) {
		middleware.WriteError(w, http.StatusConflict, "Email already registered")
		return
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Sign-up failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Sign-up failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// SignIn handles POST /api/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Sign-in failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Sign-in failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// SignInAnonymous handles POST /api/auth/anonymous
func (h *AuthHandler) SignInAnonymous(w http.ResponseWriter, r *http.Request) {
	user, token, err := h.auth.SignInAnonymous(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Anonymous sign-in failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Anonymous sign-in failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// SignOut handles POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), middleware.BearerToken(r)); err != nil {
		h.log.Error().Err(err).Msg("Sign-out failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Sign-out failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// Me handles GET /api/auth/me. It returns null for unauthenticated
// callers instead of an error, so the client can render the sign-in
// state without special-casing a 401.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.UserFromToken(r.Context(), middleware.BearerToken(r))
	if errors.Is(err, auth.ErrNotAuthenticated) {
		middleware.WriteJSON(w, http.StatusOK, (*domain.User)(nil))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Session lookup failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Session lookup failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}
