package guard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pratyush314/acquisitions/config"
	"github.com/pratyush314/acquisitions/internal/events"
	"github.com/pratyush314/acquisitions/internal/logging"
	"github.com/pratyush314/acquisitions/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuardConfig() config.GuardConfig {
	return config.GuardConfig{
		AdminLimit: 20,
		UserLimit:  10,
		GuestLimit: 2,
		Window:     time.Minute,
	}
}

func newTestGate(t *testing.T, provider Provider, resolve RoleResolver) http.Handler {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	publisher := events.NewPublisher(events.NoopBackend{}, logger)
	gate := NewGate(provider, resolve, testGuardConfig(), logger, publisher)

	return gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(handler http.Handler, userAgent, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestGateBlocksBots(t *testing.T) {
	provider := NewLocalProvider(testGuardConfig())
	defer provider.Close()
	handler := newTestGate(t, provider, nil)

	rr := doRequest(handler, "python-requests/2.31", "/users")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Automated requests are not allowed")
}

func TestGateBlocksEmptyUserAgent(t *testing.T) {
	provider := NewLocalProvider(testGuardConfig())
	defer provider.Close()
	handler := newTestGate(t, provider, nil)

	rr := doRequest(handler, "", "/users")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestGateAllowsDevTools(t *testing.T) {
	provider := NewLocalProvider(testGuardConfig())
	defer provider.Close()
	handler := newTestGate(t, provider, nil)

	rr := doRequest(handler, "curl/8.4.0", "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGateShieldBlocksInjectionMarkers(t *testing.T) {
	provider := NewLocalProvider(testGuardConfig())
	defer provider.Close()
	handler := newTestGate(t, provider, nil)

	rr := doRequest(handler, "curl/8.4.0", "/users?q=%27%20or%20%271")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Request blocked by security policy")
}

func TestGateGuestRateLimit(t *testing.T) {
	provider := NewLocalProvider(testGuardConfig())
	defer provider.Close()
	handler := newTestGate(t, provider, nil)

	for i := 0; i < 2; i++ {
		rr := doRequest(handler, "curl/8.4.0", "/api")
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}

	rr := doRequest(handler, "curl/8.4.0", "/api")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Guest request limit exceeded (2 per minute)")
}

func TestGateUsesResolvedRoleTier(t *testing.T) {
	provider := NewLocalProvider(testGuardConfig())
	defer provider.Close()
	resolve := func(r *http.Request) string { return types.RoleAdmin }
	handler := newTestGate(t, provider, resolve)

	// The guest ceiling is 2; an admin sails past it.
	for i := 0; i < 5; i++ {
		rr := doRequest(handler, "curl/8.4.0", "/api")
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}
}

type failingProvider struct{}

func (failingProvider) Check(ctx context.Context, r *http.Request, role string) (Decision, error) {
	return Decision{}, errors.New("decision backend unreachable")
}

func TestGateFailsClosedOnProviderError(t *testing.T) {
	handler := newTestGate(t, failingProvider{}, nil)

	rr := doRequest(handler, "curl/8.4.0", "/api")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "security middleware")
}

type unknownReasonProvider struct{}

func (unknownReasonProvider) Check(ctx context.Context, r *http.Request, role string) (Decision, error) {
	return Decision{Reason: Reason("quarantine")}, nil
}

func TestGateFailsClosedOnUnknownDenialReason(t *testing.T) {
	handler := newTestGate(t, unknownReasonProvider{}, nil)

	rr := doRequest(handler, "curl/8.4.0", "/api")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestIsAutomated(t *testing.T) {
	cases := []struct {
		userAgent string
		automated bool
	}{
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", false},
		{"curl/8.4.0", false},
		{"PostmanRuntime/7.36.0", false},
		{"Googlebot/2.1 (+http://www.google.com/bot.html)", false},
		{"python-requests/2.31.0", true},
		{"Scrapy/2.11.0", true},
		{"my-crawler/1.0", true},
		{"", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.automated, IsAutomated(tc.userAgent), "user agent %q", tc.userAgent)
	}
}
