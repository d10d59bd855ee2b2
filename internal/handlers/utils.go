package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/librarium/usermanagement/internal/auth"
	"github.com/librarium/usermanagement/internal/services"
)

const maxBodyBytes = 1 << 20

// Error kinds returned in ErrorResponse.Kind.
const (
	KindValidation         = "validation_error"
	KindDuplicateAccount   = "duplicate_account"
	KindInvalidCredentials = "invalid_credentials"
	KindUnauthenticated    = "unauthenticated"
	KindForbidden          = "forbidden"
	KindNotFound           = "not_found"
	KindStoreUnavailable   = "store_unavailable"
	KindInternal           = "internal_error"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// ErrorResponse is the error payload of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func withIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// IdentityFromContext returns the caller resolved by RequireAuth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(auth.Identity)
	if !ok || identity.AccountID == "" {
		return auth.Identity{}, false
	}
	return identity, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid request")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, KindUnauthenticated, "unauthenticated")
}

// writeServiceError translates service errors into HTTP responses. Store and
// internal failures never expose their cause.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
	case errors.Is(err, services.ErrDuplicateAccount):
		writeError(w, http.StatusBadRequest, KindDuplicateAccount, "account already exists")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, KindInvalidCredentials, "invalid credentials")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, KindForbidden, "operation not permitted")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, KindNotFound, "account not found")
	case errors.Is(err, services.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, KindStoreUnavailable, "service temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, KindInternal, "internal error")
	}
}
