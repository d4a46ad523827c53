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

// Package passkey implements the relying party side of WebAuthn passkey
// registration and authentication for the Moneta backend.
//
// This package wraps the go-webauthn/webauthn library and provides:
//   - Registration and authentication ceremonies keyed by email address
//   - A bounded, TTL-limited cache of pending ceremony challenges that is
//     consumed exactly once per ceremony
//   - Resolve-or-create identity handling with opaque user handles, so the
//     email never leaks to authenticators
//   - Hard signature-counter enforcement that rejects possibly cloned
//     authenticators
//   - Pluggable storage interfaces with in-memory implementations for
//     development and testing
//
// # Architecture
//
// The package is designed with a layered architecture:
//
//  1. Service layer (Service) - Ceremony orchestration and verification
//  2. Storage layer (IdentityStore, CredentialStore) - Pluggable persistence
//  3. HTTP layer (pkg/passkey/http) - Composable HTTP handlers
//
// # Usage
//
// Basic usage with in-memory storage (for development):
//
//	svc, err := passkey.NewService(passkey.ServiceParams{
//	    Config:          passkey.DefaultConfig(),
//	    IdentityStore:   passkey.NewMemoryIdentityStore(),
//	    CredentialStore: passkey.NewMemoryCredentialStore(),
//	})
//
// For production, implement the storage interfaces with your database. The
// internal/storage/postgres package provides a pgx-backed implementation.
//
// # Ceremony Correlation
//
// Both ceremonies are two-step. Begin caches the issued challenge under a
// correlation key (the normalized email, or a caller-supplied opaque key for
// usernameless flows) and Finish consumes it. A challenge that expired, was
// never issued, or was already consumed fails the finish with
// ErrChallengeNotFound and the ceremony must be restarted.
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package passkey
