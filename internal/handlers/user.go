package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/pratyush314/acquisitions/internal/events"
	"github.com/pratyush314/acquisitions/internal/logging"
	"github.com/pratyush314/acquisitions/internal/services"
	"github.com/pratyush314/acquisitions/internal/store"
	"github.com/pratyush314/acquisitions/types"
)

// UserHandler provides the user CRUD endpoints.
type UserHandler struct {
	userService *services.UserService
	events      *events.Publisher
	logger      logging.Logger
}

func NewUserHandler(userService *services.UserService, publisher *events.Publisher, logger logging.Logger) *UserHandler {
	return &UserHandler{userService: userService, events: publisher, logger: logger}
}

// UserRouter registers user routes. Listing is admin-only; reads need any
// authenticated identity; writes are checked against the self-or-admin
// policy inside the handler.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.With(RequireRole(types.RoleAdmin)).Get("/", handler.ListUsers)
	r.Get("/{id}", handler.GetUser)
	r.Put("/{id}", handler.UpdateUser)
	r.Delete("/{id}", handler.DeleteUser)
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(2, 255)),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Password, validation.Length(6, 128)),
		validation.Field(&r.Role, validation.In(types.RoleUser, types.RoleAdmin)),
	)
}

// ListUsersResponse is the admin listing body.
type ListUsersResponse struct {
	Message string       `json:"message"`
	Users   []types.User `json:"users"`
	Count   int          `json:"count"`
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to retrieve users")
		return
	}
	writeJSON(w, http.StatusOK, ListUsersResponse{
		Message: "Successfully retrieved users.",
		Users:   users,
		Count:   len(users),
	})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", "User not found")
			return
		}
		h.logger.Error(r.Context(), "get user failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to retrieve user")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{Message: "Successfully retrieved user.", User: user})
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	isOwnProfile := identity.ID == id
	isAdmin := identity.Role == types.RoleAdmin

	if !isOwnProfile && !isAdmin {
		writeError(w, http.StatusForbidden, "Forbidden", "You can only update your own profile")
		return
	}

	// Only admins change roles. A self-update carrying a role change has the
	// role stripped rather than rejected.
	if req.Role != nil && !isAdmin {
		req.Role = nil
	}

	user, err := h.userService.Update(r.Context(), id, services.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Not found", "User not found")
		case errors.Is(err, store.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "Conflict", "Email already exists")
		default:
			h.logger.Error(r.Context(), "update user failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to update user")
		}
		return
	}

	h.logger.Info(r.Context(), "user updated", "id", id, "actor", identity.Email)
	h.events.Emit(r.Context(), events.Event{
		Type:    events.TypeUserUpdated,
		Actor:   identity.Email,
		Subject: strconv.Itoa(id),
	})

	writeJSON(w, http.StatusOK, UserResponse{Message: "User updated successfully", User: user})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	if identity.ID != id && identity.Role != types.RoleAdmin {
		writeError(w, http.StatusForbidden, "Forbidden", "You can only delete your own profile or must be an administrator")
		return
	}

	user, err := h.userService.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", "User not found")
			return
		}
		h.logger.Error(r.Context(), "delete user failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to delete user")
		return
	}

	h.logger.Info(r.Context(), "user deleted", "id", id, "actor", identity.Email)
	h.events.Emit(r.Context(), events.Event{
		Type:    events.TypeUserDeleted,
		Actor:   identity.Email,
		Subject: strconv.Itoa(id),
	})

	writeJSON(w, http.StatusOK, UserResponse{Message: "User deleted successfully", User: user})
}
