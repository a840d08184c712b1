// Package auth gates every API request behind a bearer token verified by the hosted
// auth provider. No session state is kept locally; each request is re-verified.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"

	"github.com/metalyard/metalyard/internal/shared"
)

// Identity is the verified caller. UserID is the tenant key for every query.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Verifier exchanges a bearer token for a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

var (
	// ErrMissingToken is returned when the Authorization header is absent or malformed.
	ErrMissingToken = shared.Unauthorized("Missing or invalid Authorization header")
	// ErrInvalidToken is returned when the provider rejects the token or it is expired.
	ErrInvalidToken = shared.Unauthorized("Invalid or expired token")
	// ErrProviderUnavailable is returned while the circuit breaker is open.
	ErrProviderUnavailable = shared.NewError(shared.KindUnavailable, "Authentication provider unavailable")
)

// ProviderConfig configures ProviderVerifier.
type ProviderConfig struct {
	BaseURL    string
	AnonKey    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// ProviderVerifier calls the provider's /auth/v1/user endpoint.
type ProviderVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	parser  *jwt.Parser
	now     func() time.Time
}

// NewProviderVerifier constructs a verifier guarded by a circuit breaker.
func NewProviderVerifier(cfg ProviderConfig) *ProviderVerifier {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	settings := gobreaker.Settings{
		Name:     "auth-provider",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A rejected token is a healthy provider answering no.
		IsSuccessful: func(err error) bool {
			return err == nil || shared.KindOf(err) == shared.KindUnauthorized
		},
	}
	return &ProviderVerifier{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		parser:  jwt.NewParser(),
		now:     now,
	}
}

// Verify implements Verifier.
func (v *ProviderVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if err := v.precheck(token); err != nil {
		return Identity{}, err
	}
	out, err := v.breaker.Execute(func() (any, error) {
		return v.fetchUser(ctx, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Identity{}, ErrProviderUnavailable
		}
		return Identity{}, err
	}
	return out.(Identity), nil
}

// precheck rejects tokens that are not JWTs or whose exp claim has passed without a network call.
// Signature verification is left to the provider.
func (v *ProviderVerifier) precheck(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
		return ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return ErrInvalidToken
	}
	if exp != nil && !exp.After(v.now()) {
		return ErrInvalidToken
	}
	return nil
}

func (v *ProviderVerifier) fetchUser(ctx context.Context, token string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, shared.Upstream("authentication provider request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrInvalidToken
	case resp.StatusCode >= 400:
		return Identity{}, shared.Upstream("authentication provider error", fmt.Errorf("status %d", resp.StatusCode))
	}

	var ident Identity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return Identity{}, shared.Upstream("authentication provider returned malformed user", err)
	}
	if ident.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	return ident, nil
}
