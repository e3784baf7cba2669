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
	"github.com/pratyush314/acquisitions/internal/token"
	"github.com/pratyush314/acquisitions/types"
)

// AuthHandler provides the signup/signin/signout endpoints.
type AuthHandler struct {
	authService *services.AuthService
	signer      *token.Signer
	cookies     SessionCookies
	events      *events.Publisher
	logger      logging.Logger
}

func NewAuthHandler(
	authService *services.AuthService,
	signer *token.Signer,
	cookies SessionCookies,
	publisher *events.Publisher,
	logger logging.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		signer:      signer,
		cookies:     cookies,
		events:      publisher,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/signup", handler.Signup)
	r.Post("/signin", handler.Signin)
	r.Post("/signout", handler.Signout)
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 255)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&r.Role, validation.In(types.RoleUser, types.RoleAdmin)),
	)
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SigninRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// UserResponse pairs the standard message with a user record.
type UserResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

// Signup registers a new account and starts a session.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "Conflict", "Email already exists")
			return
		}
		h.logger.Error(r.Context(), "signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to register user")
		return
	}

	tokenString, err := h.signer.Sign(user)
	if err != nil {
		h.logger.Error(r.Context(), "token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to create session")
		return
	}
	h.cookies.Attach(w, tokenString)

	h.logger.Info(r.Context(), "user registered", "email", user.Email)
	h.events.Emit(r.Context(), events.Event{
		Type:    events.TypeUserRegistered,
		Actor:   user.Email,
		Subject: strconv.Itoa(user.ID),
	})

	writeJSON(w, http.StatusCreated, UserResponse{Message: "User registered", User: user})
}

// Signin verifies credentials and starts a session.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.authService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password are presented identically.
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid credentials")
			return
		}
		h.logger.Error(r.Context(), "signin failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to sign in")
		return
	}

	tokenString, err := h.signer.Sign(user)
	if err != nil {
		h.logger.Error(r.Context(), "token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to create session")
		return
	}
	h.cookies.Attach(w, tokenString)

	h.logger.Info(r.Context(), "user signed in", "email", user.Email)
	h.events.Emit(r.Context(), events.Event{
		Type:    events.TypeUserSignedIn,
		Actor:   user.Email,
		Subject: strconv.Itoa(user.ID),
	})

	writeJSON(w, http.StatusOK, UserResponse{Message: "User signed in", User: user})
}

// Signout ends the session by expiring the cookie. Tokens are stateless, so
// there is nothing to revoke server-side.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User signed out successfully"})
}
