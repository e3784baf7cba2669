// Package guard is the per-request abuse gate: bot detection, a request
// shield, and role-tiered rate limiting. Policy denials map to 403; a fault
// in the gate itself fails closed with a 500.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pratyush314/acquisitions/config"
	"github.com/pratyush314/acquisitions/internal/events"
	"github.com/pratyush314/acquisitions/internal/logging"
	"github.com/pratyush314/acquisitions/types"
)

// Reason categorizes a denial.
type Reason string

const (
	ReasonBot       Reason = "bot"
	ReasonShield    Reason = "shield"
	ReasonRateLimit Reason = "rate_limit"
)

// RoleGuest is the tier for requests with no resolved identity.
const RoleGuest = "guest"

// Decision is the per-request outcome of the gate.
type Decision struct {
	Allowed bool
	Reason  Reason
}

var allow = Decision{Allowed: true}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Provider decides whether a request may proceed, given the caller's
// resolved role tier.
type Provider interface {
	Check(ctx context.Context, r *http.Request, role string) (Decision, error)
}

// RoleResolver derives the caller's role tier from a request on a
// best-effort basis; unresolved callers are guests.
type RoleResolver func(r *http.Request) string

// LocalProvider is an in-process Provider composing the bot detector, the
// request shield, and one sliding-window limiter per role tier.
type LocalProvider struct {
	limiters map[string]*SlidingWindowLimiter
}

func NewLocalProvider(cfg config.GuardConfig) *LocalProvider {
	return &LocalProvider{
		limiters: map[string]*SlidingWindowLimiter{
			types.RoleAdmin: NewSlidingWindowLimiter(cfg.AdminLimit, cfg.Window),
			types.RoleUser:  NewSlidingWindowLimiter(cfg.UserLimit, cfg.Window),
			RoleGuest:       NewSlidingWindowLimiter(cfg.GuestLimit, cfg.Window),
		},
	}
}

func (p *LocalProvider) Check(ctx context.Context, r *http.Request, role string) (Decision, error) {
	if IsAutomated(r.UserAgent()) {
		return deny(ReasonBot), nil
	}
	if violatesShield(r) {
		return deny(ReasonShield), nil
	}

	limiter, ok := p.limiters[role]
	if !ok {
		limiter = p.limiters[RoleGuest]
	}
	if !limiter.Allow(ClientIP(r)) {
		return deny(ReasonRateLimit), nil
	}
	return allow, nil
}

// Close releases the limiters' background resources.
func (p *LocalProvider) Close() error {
	for _, limiter := range p.limiters {
		_ = limiter.Close()
	}
	return nil
}

// Gate consults the provider on every request and translates its decision
// into an HTTP outcome.
type Gate struct {
	provider Provider
	resolve  RoleResolver
	limits   config.GuardConfig
	logger   logging.Logger
	events   *events.Publisher
}

func NewGate(provider Provider, resolve RoleResolver, cfg config.GuardConfig, logger logging.Logger, publisher *events.Publisher) *Gate {
	return &Gate{
		provider: provider,
		resolve:  resolve,
		limits:   cfg,
		logger:   logger,
		events:   publisher,
	}
}

// Middleware wires the gate into an HTTP handler chain.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := RoleGuest
		if g.resolve != nil {
			role = g.resolve(r)
		}

		decision, err := g.provider.Check(r.Context(), r, role)
		if err != nil {
			// Fail closed: a broken gate never waves requests through.
			g.logger.Error(r.Context(), "guard check failed", "error", err, "path", r.URL.Path)
			writeForbidden(w, http.StatusInternalServerError, "Internal server error", "Something went wrong with security middleware")
			return
		}

		if !decision.Allowed {
			message, known := g.denialMessage(decision.Reason, role)
			if !known {
				// An uncategorized denial is treated as a gate malfunction.
				g.logger.Error(r.Context(), "guard returned unknown denial reason", "reason", string(decision.Reason))
				writeForbidden(w, http.StatusInternalServerError, "Internal server error", "Something went wrong with security middleware")
				return
			}

			g.logger.Warn(r.Context(), "request blocked",
				"reason", string(decision.Reason),
				"ip", ClientIP(r),
				"path", r.URL.Path,
				"user_agent", r.UserAgent(),
			)
			g.events.Emit(r.Context(), events.Event{
				Type:  events.TypeRequestBlocked,
				Actor: ClientIP(r),
				Attributes: map[string]string{
					"reason": string(decision.Reason),
					"path":   r.URL.Path,
					"role":   role,
				},
			})
			writeForbidden(w, http.StatusForbidden, "Forbidden", message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) denialMessage(reason Reason, role string) (string, bool) {
	switch reason {
	case ReasonBot:
		return "Automated requests are not allowed", true
	case ReasonShield:
		return "Request blocked by security policy", true
	case ReasonRateLimit:
		switch role {
		case types.RoleAdmin:
			return fmt.Sprintf("Admin request limit exceeded (%d per minute). Slow down", g.limits.AdminLimit), true
		case types.RoleUser:
			return fmt.Sprintf("User request limit exceeded (%d per minute). Slow down", g.limits.UserLimit), true
		default:
			return fmt.Sprintf("Guest request limit exceeded (%d per minute). Slow down", g.limits.GuestLimit), true
		}
	default:
		return "", false
	}
}

func writeForbidden(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": message,
	})
}
