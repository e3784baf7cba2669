package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pratyush314/acquisitions/internal/token"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// Identity is the authenticated caller resolved from the session token.
type Identity struct {
	ID    int
	Email string
	Role  string
}

func identityFromClaims(claims token.Claims) (Identity, error) {
	id, err := claims.UserID()
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: id, Email: claims.Email, Role: claims.Role}, nil
}

// IdentityFromContext extracts the resolved identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(Identity)
	return identity, ok
}

func withIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var details any
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details = fieldErrs
	} else {
		details = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Validation failed",
		Details: details,
	})
}
