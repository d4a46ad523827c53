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

import "time"

// HeaderCeremonyKey is the header carrying the ceremony correlation key.
// Begin responses set it; finish requests must echo it back.
const HeaderCeremonyKey = "X-Ceremony-Key"

// BeginRegistrationRequest is the request body for starting registration.
type BeginRegistrationRequest struct {
	// Email is the user's email address (required).
	Email string `json:"email"`
}

// BeginAuthenticationRequest is the request body for starting authentication.
type BeginAuthenticationRequest struct {
	// Email is the user's email address (optional). When omitted, the
	// usernameless discoverable flow is used.
	Email string `json:"email,omitempty"`
}

// AuthResponse is the response after a successful authentication.
type AuthResponse struct {
	// Token is the issued session token.
	Token string `json:"token"`

	// Email is the authenticated identity's email address.
	Email string `json:"email"`
}

// RegistrationStatusResponse reports whether an email has a passkey.
type RegistrationStatusResponse struct {
	Registered bool `json:"registered"`
}

// CredentialResponse describes a registered credential.
type CredentialResponse struct {
	// ID is the base64url-encoded credential ID.
	ID string `json:"id"`

	// Nickname is the credential's friendly name.
	Nickname string `json:"nickname"`

	// Algorithm is the credential's signature algorithm (e.g. "ES256").
	Algorithm string `json:"algorithm,omitempty"`

	// SignCount is the credential's current signature counter.
	SignCount uint32 `json:"sign_count"`

	// BackedUp indicates the credential is synced to a passkey provider.
	BackedUp bool `json:"backed_up"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed an assertion.
	LastUsedAt time.Time `json:"last_used_at"`
}

// CredentialListResponse is the response for listing credentials.
type CredentialListResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidEmail       = "invalid_email"
	ErrorCodeCeremonyExpired    = "ceremony_expired"
	ErrorCodeIdentityNotFound   = "identity_not_found"
	ErrorCodeCredentialNotFound = "credential_not_found"
	ErrorCodeCredentialExists   = "credential_exists"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeUnauthorized       = "unauthorized"
	ErrorCodePossibleClone      = "possible_clone"
	ErrorCodeInternalError      = "internal_error"
)
