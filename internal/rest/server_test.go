// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-moneta.
//
// go-moneta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-moneta/pkg/health"
	"github.com/jeremyhahn/go-moneta/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-moneta/pkg/passkey/http"
	"github.com/jeremyhahn/go-moneta/pkg/ratelimit"
	"github.com/jeremyhahn/go-moneta/pkg/session"
)

const testOrigin = "https://example.com"

func newTestIssuer(t *testing.T) *session.Issuer {
	t.Helper()
	issuer, err := session.NewIssuer(&session.Config{
		Secret:   []byte("0123456789abcdef0123456789abcdef"),
		Issuer:   "moneta-test",
		Audience: "example.com",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

func newTestServer(t *testing.T) (*Server, *session.Issuer) {
	t.Helper()

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config: &passkey.Config{
			RPID:          "example.com",
			RPDisplayName: "Example",
			RPOrigins:     []string{testOrigin},
		},
		IdentityStore:   passkey.NewMemoryIdentityStore(),
		CredentialStore: passkey.NewMemoryCredentialStore(),
	})
	require.NoError(t, err)

	issuer := newTestIssuer(t)
	server, err := NewServer(&Config{
		Port:           8443,
		Passkeys:       passkeyhttp.NewHandler(svc).WithTokenIssuer(issuer),
		Issuer:         issuer,
		CORSOrigins:    []string{testOrigin},
		MetricsEnabled: true,
	})
	require.NoError(t, err)
	return server, issuer
}

func TestNewServer_Validation(t *testing.T) {
	issuer := newTestIssuer(t)

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:          passkey.DefaultConfig(),
		IdentityStore:   passkey.NewMemoryIdentityStore(),
		CredentialStore: passkey.NewMemoryCredentialStore(),
	})
	require.NoError(t, err)
	handler := passkeyhttp.NewHandler(svc)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: "config is required",
		},
		{
			name:    "missing passkey handler",
			cfg:     &Config{Issuer: issuer},
			wantErr: "passkey handler is required",
		},
		{
			name:    "missing issuer",
			cfg:     &Config{Passkeys: handler},
			wantErr: "session issuer is required",
		},
		{
			name: "valid",
			cfg:  &Config{Passkeys: handler, Issuer: issuer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ":8443", server.Addr())
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/startup"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)

		var resp HealthCheckResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp), path)
		assert.Equal(t, health.StatusHealthy, resp.Status, path)
	}
}

func TestHealthEndpoints_WithChecker(t *testing.T) {
	checker := health.NewChecker()
	checker.RegisterCheck("failing", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{
			Name:   "failing",
			Status: health.StatusUnhealthy,
		}
	})
	checker.MarkStarted()

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:          passkey.DefaultConfig(),
		IdentityStore:   passkey.NewMemoryIdentityStore(),
		CredentialStore: passkey.NewMemoryCredentialStore(),
	})
	require.NoError(t, err)

	issuer := newTestIssuer(t)
	server, err := NewServer(&Config{
		Passkeys: passkeyhttp.NewHandler(svc),
		Issuer:   issuer,
		Health:   checker,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Liveness stays healthy even when a readiness check fails
	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "moneta_")
}

func TestPasskeyRoutesMounted(t *testing.T) {
	server, _ := newTestServer(t)

	body := strings.NewReader(`{"email":"alice@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/passkey/registration/begin", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", rec.Header().Get(passkeyhttp.HeaderCeremonyKey))
	assert.Contains(t, rec.Body.String(), "publicKey")
}

func TestSessionEndpoint(t *testing.T) {
	server, issuer := newTestServer(t)
	router := server.Router()

	// Missing token
	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token
	req = httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token
	handle, err := passkey.NewUserHandle()
	require.NoError(t, err)
	token, err := issuer.Issue(context.Background(), &passkey.Identity{
		ID:     1,
		Email:  "alice@example.com",
		Handle: handle,
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alice@example.com", resp.Email)
	assert.NotEmpty(t, resp.Handle)
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestCORS(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	// Allowed origin gets CORS headers
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/passkey/registration/begin", nil)
	req.Header.Set("Origin", testOrigin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	// Unknown origin gets none
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/passkey/registration/begin", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitedPasskeyRoutes(t *testing.T) {
	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:          passkey.DefaultConfig(),
		IdentityStore:   passkey.NewMemoryIdentityStore(),
		CredentialStore: passkey.NewMemoryCredentialStore(),
	})
	require.NoError(t, err)

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             1,
	})
	defer limiter.Stop()

	issuer := newTestIssuer(t)
	server, err := NewServer(&Config{
		Passkeys:  passkeyhttp.NewHandler(svc).WithTokenIssuer(issuer),
		Issuer:    issuer,
		RateLimit: limiter,
	})
	require.NoError(t, err)
	router := server.Router()

	body := strings.NewReader(`{"email":"alice@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/passkey/registration/begin", body)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Burst exhausted for this client
	req = httptest.NewRequest(http.MethodPost, "/api/v1/passkey/registration/begin", nil)
	req.RemoteAddr = "203.0.113.1:1234"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health endpoints are never rate limited
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.1:1234"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestCredentialRoutesRequireSession confirms the credential-management
// routes sit behind the session middleware and act on the token's
// principal, not on anything the caller supplies.
func TestCredentialRoutesRequireSession(t *testing.T) {
	svc, err := passkey.NewService(passkey.ServiceParams{
		Config: &passkey.Config{
			RPID:          "example.com",
			RPDisplayName: "Example",
			RPOrigins:     []string{testOrigin},
		},
		IdentityStore:   passkey.NewMemoryIdentityStore(),
		CredentialStore: passkey.NewMemoryCredentialStore(),
	})
	require.NoError(t, err)

	issuer := newTestIssuer(t)
	server, err := NewServer(&Config{
		Passkeys: passkeyhttp.NewHandler(svc).WithTokenIssuer(issuer),
		Issuer:   issuer,
	})
	require.NoError(t, err)
	router := server.Router()

	// Anonymous callers get 401 regardless of any email they name
	req := httptest.NewRequest(http.MethodGet, "/api/v1/passkey/credentials?email=alice@example.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/passkey/credentials/AAAA?email=alice@example.com", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A valid session token reaches the handlers as its own principal
	identity, err := svc.ResolveIdentity(context.Background(), "alice@example.com")
	require.NoError(t, err)
	token, err := issuer.Issue(context.Background(), identity)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/passkey/credentials", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp passkeyhttp.CredentialListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	assert.Empty(t, listResp.Credentials)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/passkey/credentials/AAAA", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCorrelationHeader(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	// Generated when absent
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	// Echoed when provided
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "test-correlation")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "test-correlation", rec.Header().Get("X-Correlation-ID"))
}

func TestStop(t *testing.T) {
	server, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
}
