package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pratyush314/acquisitions/internal/events"
	"github.com/pratyush314/acquisitions/internal/logging"
	"github.com/pratyush314/acquisitions/internal/services"
	"github.com/pratyush314/acquisitions/internal/store/memory"
	"github.com/pratyush314/acquisitions/internal/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	router *chi.Mux
	repo   *memory.Repository
	signer *token.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.New()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	publisher := events.NewPublisher(events.NoopBackend{}, logger)

	signer := token.NewSigner("test-secret", time.Hour)
	cookies := NewSessionCookies(time.Hour, false)

	authHandler := NewAuthHandler(services.NewAuthService(repo, bcrypt.MinCost), signer, cookies, publisher, logger)
	userHandler := NewUserHandler(services.NewUserService(repo, bcrypt.MinCost), publisher, logger)

	router := chi.NewRouter()
	AuthRouter(router, authHandler)
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userHandler, RequireAuth(signer, cookies))
	})

	return &testEnv{router: router, repo: repo, signer: signer}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// signup registers a user and returns the session cookie.
func (e *testEnv) signup(t *testing.T, name, email, role, password string) *http.Cookie {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/signup", map[string]string{
		"name":     name,
		"email":    email,
		"role":     role,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	cookie := sessionCookie(rr)
	require.NotNil(t, cookie, "signup must set the session cookie")
	return cookie
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == TokenCookieName {
			return cookie
		}
	}
	return nil
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}
