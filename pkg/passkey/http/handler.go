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

package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-moneta/pkg/metrics"
	"github.com/jeremyhahn/go-moneta/pkg/passkey"
)

// TokenIssuer issues a session token for an authenticated identity.
type TokenIssuer interface {
	Issue(ctx context.Context, identity *passkey.Identity) (string, error)
}

// Handler provides HTTP handlers for passkey ceremonies.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service   *passkey.Service
	issuer    TokenIssuer // optional
	principal func(r *http.Request) string
	logger    *slog.Logger
}

// NewHandler creates a new passkey HTTP handler.
func NewHandler(service *passkey.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// WithTokenIssuer sets the session token issuer used after a successful
// authentication. If unset, the response token is the base64url user handle.
func (h *Handler) WithTokenIssuer(issuer TokenIssuer) *Handler {
	h.issuer = issuer
	return h
}

// WithPrincipal sets the resolver for the authenticated email on
// credential-management requests, typically backed by session middleware.
// An empty return means unauthenticated. Without a resolver the
// credential-management handlers reject every request.
func (h *Handler) WithPrincipal(principal func(r *http.Request) string) *Handler {
	h.principal = principal
	return h
}

// BeginRegistration handles POST /registration/begin
//
// Request body:
//
//	{
//	    "email": "user@example.com"
//	}
//
// Response: WebAuthn PublicKeyCredentialCreationOptions
// Header: X-Ceremony-Key (echo back on FinishRegistration)
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	var req BeginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "email is required")
		return
	}

	key, err := passkey.NormalizeEmail(req.Email)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidEmail, "invalid email address")
		return
	}

	options, err := h.service.BeginRegistration(r.Context(), key)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	metrics.SetPendingChallenges(float64(h.service.PendingChallenges()))

	w.Header().Set(HeaderCeremonyKey, key)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishRegistration handles POST /registration/finish
//
// Header: X-Ceremony-Key (from BeginRegistration)
// Request body: Attestation response from authenticator
// Response: CredentialResponse describing the stored credential
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(HeaderCeremonyKey)
	if key == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "ceremony key header is required")
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		metrics.RecordCeremonyFailure(metrics.CeremonyRegistration, metrics.ReasonMalformedResponse)
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	start := time.Now()
	credential, _, err := h.service.FinishRegistration(r.Context(), key, response)
	duration := time.Since(start).Seconds()
	defer metrics.SetPendingChallenges(float64(h.service.PendingChallenges()))
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusError, duration)
		metrics.RecordCeremonyFailure(metrics.CeremonyRegistration, failureReason(err))
		h.handleServiceError(w, err)
		return
	}
	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusSuccess, duration)

	h.writeJSON(w, http.StatusCreated, h.credentialResponse(credential))
}

// BeginAuthentication handles POST /authentication/begin
//
// Request body:
//
//	{
//	    "email": "user@example.com" // optional
//	}
//
// When email is omitted (or the body is empty) the discoverable flow is used
// and the ceremony key is a generated opaque value.
// Response: WebAuthn PublicKeyCredentialRequestOptions
// Header: X-Ceremony-Key (echo back on FinishAuthentication)
func (h *Handler) BeginAuthentication(w http.ResponseWriter, r *http.Request) {
	var req BeginAuthenticationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Allow empty body for the discoverable flow
		req = BeginAuthenticationRequest{}
	}

	var options *protocol.CredentialAssertion
	var key string
	var err error

	if req.Email != "" {
		key, err = passkey.NormalizeEmail(req.Email)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidEmail, "invalid email address")
			return
		}
		options, err = h.service.BeginAuthentication(r.Context(), key)
	} else {
		key = uuid.NewString()
		options, err = h.service.BeginDiscoverableAuthentication(r.Context(), key)
	}
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	metrics.SetPendingChallenges(float64(h.service.PendingChallenges()))

	w.Header().Set(HeaderCeremonyKey, key)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishAuthentication handles POST /authentication/finish
//
// Header: X-Ceremony-Key (from BeginAuthentication)
// Request body: Assertion response from authenticator
// Response: AuthResponse with session token and email
func (h *Handler) FinishAuthentication(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(HeaderCeremonyKey)
	if key == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "ceremony key header is required")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		metrics.RecordCeremonyFailure(metrics.CeremonyAuthentication, metrics.ReasonMalformedResponse)
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	start := time.Now()
	identity, _, err := h.service.FinishAuthentication(r.Context(), key, response)
	duration := time.Since(start).Seconds()
	defer metrics.SetPendingChallenges(float64(h.service.PendingChallenges()))
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusError, duration)
		metrics.RecordCeremonyFailure(metrics.CeremonyAuthentication, failureReason(err))
		h.handleServiceError(w, err)
		return
	}
	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusSuccess, duration)

	token, err := h.issueToken(r.Context(), identity)
	if err != nil {
		h.logger.Error("failed to issue session token",
			"error", err,
			"email", identity.Email)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
		return
	}
	metrics.RecordSessionIssued()

	h.writeJSON(w, http.StatusOK, AuthResponse{
		Token: token,
		Email: identity.Email,
	})
}

// RegistrationStatus handles GET /registration/status?email=user@example.com
//
// Response: RegistrationStatusResponse. An unknown email reports
// registered=false rather than an error, matching BeginAuthentication's
// no-probing behavior at the protocol level. The boolean itself still
// discloses whether an email has a passkey, which is what lets a login
// page steer between registration and authentication. Deployments that
// consider that disclosure unacceptable should leave this route behind
// an aggressive rate limit or not mount it at all.
func (h *Handler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "email query parameter is required")
		return
	}

	registered, err := h.service.Registered(r.Context(), email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: registered})
}

// ListCredentials handles GET /credentials for the authenticated user.
//
// Response: CredentialListResponse
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authenticatedEmail(w, r)
	if !ok {
		return
	}

	creds, err := h.service.Credentials(r.Context(), email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := CredentialListResponse{Credentials: make([]CredentialResponse, 0, len(creds))}
	for _, cred := range creds {
		resp.Credentials = append(resp.Credentials, h.credentialResponse(cred))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// DeleteCredential handles DELETE /credentials/{id} for the authenticated
// user, where {id} is the base64url-encoded credential ID. Credentials
// owned by someone else are reported as not found.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authenticatedEmail(w, r)
	if !ok {
		return
	}

	externalID, err := base64.RawURLEncoding.DecodeString(credentialIDParam(r))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid credential ID encoding")
		return
	}

	if err := h.service.DeleteCredential(r.Context(), email, externalID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authenticatedEmail resolves the principal for credential-management
// requests, writing a 401 when there is none.
func (h *Handler) authenticatedEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.principal == nil {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "authentication required")
		return "", false
	}
	email := h.principal(r)
	if email == "" {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "authentication required")
		return "", false
	}
	return email, true
}

// credentialResponse converts a stored credential to its API shape.
func (h *Handler) credentialResponse(cred *passkey.Credential) CredentialResponse {
	resp := CredentialResponse{
		ID:         base64.RawURLEncoding.EncodeToString(cred.ExternalID),
		Nickname:   cred.Nickname,
		SignCount:  cred.SignCount,
		BackedUp:   cred.BackupState,
		CreatedAt:  cred.CreatedAt,
		LastUsedAt: cred.LastUsedAt,
	}
	if info, err := passkey.ParseKeyInfo(cred.PublicKey); err == nil {
		resp.Algorithm = info.Label
	}
	return resp
}

// issueToken creates the post-authentication session token.
func (h *Handler) issueToken(ctx context.Context, identity *passkey.Identity) (string, error) {
	if h.issuer != nil {
		return h.issuer.Issue(ctx, identity)
	}
	return base64.RawURLEncoding.EncodeToString(identity.Handle), nil
}

// failureReason maps a ceremony error to its metric label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, passkey.ErrChallengeNotFound):
		return metrics.ReasonChallengeExpired
	case errors.Is(err, passkey.ErrPossibleClone):
		return metrics.ReasonPossibleClone
	case errors.Is(err, passkey.ErrMalformedResponse):
		return metrics.ReasonMalformedResponse
	case passkey.IsVerificationFailed(err):
		return metrics.ReasonVerificationFailed
	default:
		return metrics.ReasonStorage
	}
}

// handleServiceError maps service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, passkey.ErrInvalidEmail):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidEmail, "invalid email address")
	case errors.Is(err, passkey.ErrChallengeNotFound):
		h.writeError(w, http.StatusBadRequest, ErrorCodeCeremonyExpired, "ceremony not found or expired")
	case errors.Is(err, passkey.ErrMalformedResponse):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid authenticator response")
	case errors.Is(err, passkey.ErrIdentityNotFound), errors.Is(err, passkey.ErrUnknownUserHandle):
		h.writeError(w, http.StatusNotFound, ErrorCodeIdentityNotFound, "identity not found")
	case errors.Is(err, passkey.ErrCredentialNotFound):
		h.writeError(w, http.StatusNotFound, ErrorCodeCredentialNotFound, "credential not found")
	case errors.Is(err, passkey.ErrCredentialExists), errors.Is(err, passkey.ErrIdentityExists):
		h.writeError(w, http.StatusConflict, ErrorCodeCredentialExists, "already registered")
	case errors.Is(err, passkey.ErrPossibleClone):
		h.writeError(w, http.StatusUnauthorized, ErrorCodePossibleClone, "possible cloned authenticator")
	case passkey.IsVerificationFailed(err):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "verification failed")
	default:
		h.logger.Error("passkey service error", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
