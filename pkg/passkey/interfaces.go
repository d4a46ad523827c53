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

package passkey

import (
	"context"
	"time"
)

// IdentityStore persists identities keyed by email and by user handle.
type IdentityStore interface {
	// CreateIdentity stores a new identity and fills in its ID.
	// Returns ErrIdentityExists when the email is already taken.
	CreateIdentity(ctx context.Context, identity *Identity) error

	// GetIdentityByEmail retrieves an identity by its canonical email.
	// Returns ErrIdentityNotFound when no identity matches.
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)

	// GetIdentityByHandle retrieves an identity by its opaque user handle.
	// Returns ErrIdentityNotFound when no identity matches.
	GetIdentityByHandle(ctx context.Context, handle []byte) (*Identity, error)
}

// CredentialStore persists registered passkeys.
type CredentialStore interface {
	// CreateCredential stores a new credential and fills in its ID.
	// Returns ErrCredentialExists when the external ID is already stored.
	CreateCredential(ctx context.Context, credential *Credential) error

	// GetCredential retrieves a credential by its authenticator-assigned
	// external ID. Returns ErrCredentialNotFound when no credential matches.
	GetCredential(ctx context.Context, externalID []byte) (*Credential, error)

	// ListCredentials returns all credentials owned by an identity, newest first.
	ListCredentials(ctx context.Context, identityID int64) ([]*Credential, error)

	// UpdateSignCount records a successful assertion. The update only applies
	// when the new counter is strictly greater than the stored one, or when
	// both are zero. Returns ErrCounterNotAdvanced otherwise and
	// ErrCredentialNotFound when no credential matches.
	UpdateSignCount(ctx context.Context, externalID []byte, signCount uint32, usedAt time.Time) error

	// DeleteCredential removes a credential owned by the given identity.
	// Returns ErrCredentialNotFound when the credential does not exist or is
	// owned by a different identity.
	DeleteCredential(ctx context.Context, identityID int64, externalID []byte) error
}
