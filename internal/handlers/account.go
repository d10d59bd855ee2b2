package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/librarium/usermanagement/internal/services"
	"github.com/librarium/usermanagement/types"
)

// AccountHandler provides registration, login and profile endpoints.
type AccountHandler struct {
	accounts *services.AccountService
}

// NewAccountHandler constructs an AccountHandler with the provided dependencies.
func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// AccountRouter registers account routes on the given router. Only
// registration and login are reachable without a bearer token.
func AccountRouter(r chi.Router, accounts *services.AccountService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAccountHandler(accounts)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/profile", handler.GetProfile)
		r.Put("/profile", handler.UpdateProfile)
		r.Delete("/{accountID}", handler.DeleteAccount)
	})
}

// Register creates a new account.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}

	account, err := h.accounts.Register(r.Context(), services.RegisterInput{
		Name:   req.Name,
		Email:  req.Email,
		Secret: firstNonEmpty(req.Secret, req.Password),
		Role:   req.Role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Login verifies credentials and returns a bearer token.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}

	result, err := h.accounts.Login(r.Context(), services.LoginInput{
		Email:  req.Email,
		Secret: firstNonEmpty(req.Secret, req.Password),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt.UTC(),
		Account:   result.Account,
	})
}

// GetProfile returns the authenticated caller's account.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	account, err := h.accounts.GetProfile(r.Context(), identity.AccountID)
	if err != nil {
		writeProfileError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// UpdateProfile changes the authenticated caller's name, email or secret.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}

	secret := req.Secret
	if secret == nil {
		secret = req.Password
	}
	account, err := h.accounts.UpdateProfile(r.Context(), identity.AccountID, services.ProfilePatch{
		Name:   req.Name,
		Email:  req.Email,
		Secret: secret,
	})
	if err != nil {
		writeProfileError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// DeleteAccount removes the account in the path if the delete policy allows
// the caller to.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	targetID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), identity, targetID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type RegisterRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Secret   string     `json:"secret"`
	Password string     `json:"password"`
	Role     types.Role `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Secret   string `json:"secret"`
	Password string `json:"password"`
}

// UpdateProfileRequest holds the optional fields of a profile update.
type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Secret   *string `json:"secret"`
	Password *string `json:"password"`
}

type LoginResponse struct {
	Token     string        `json:"token"`
	TokenType string        `json:"token_type"`
	ExpiresAt time.Time     `json:"expires_at"`
	Account   types.Account `json:"account"`
}

// writeProfileError treats a verified token whose account no longer exists
// as unauthenticated.
func writeProfileError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrNotFound) {
		writeUnauthenticated(w)
		return
	}
	writeServiceError(w, err)
}

func parseAccountID(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "accountID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errors.New("invalid account id")
	}
	return id.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
