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

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jeremyhahn/go-moneta/pkg/passkey"
)

// IdentityStore implements passkey.IdentityStore using PostgreSQL.
type IdentityStore struct{ db *DB }

// NewIdentityStore constructs an identity store.
func NewIdentityStore(db *DB) *IdentityStore { return &IdentityStore{db: db} }

// CreateIdentity inserts a new identity row and fills in its generated ID
// and timestamps.
func (s *IdentityStore) CreateIdentity(ctx context.Context, identity *passkey.Identity) error {
	const q = `
INSERT INTO identities (email, handle)
VALUES ($1, $2)
RETURNING id, created_at, updated_at`
	row := s.db.Pool.QueryRow(ctx, q, identity.Email, identity.Handle)
	err := row.Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
	if isUniqueViolation(err) {
		return passkey.ErrIdentityExists
	}
	return err
}

// GetIdentityByEmail selects an identity by its canonical email.
func (s *IdentityStore) GetIdentityByEmail(ctx context.Context, email string) (*passkey.Identity, error) {
	const q = `
SELECT id, email, handle, created_at, updated_at
FROM identities WHERE email=$1`
	return s.scanIdentity(s.db.Pool.QueryRow(ctx, q, email))
}

// GetIdentityByHandle selects an identity by its opaque user handle.
func (s *IdentityStore) GetIdentityByHandle(ctx context.Context, handle []byte) (*passkey.Identity, error) {
	const q = `
SELECT id, email, handle, created_at, updated_at
FROM identities WHERE handle=$1`
	return s.scanIdentity(s.db.Pool.QueryRow(ctx, q, handle))
}

func (s *IdentityStore) scanIdentity(row pgx.Row) (*passkey.Identity, error) {
	var identity passkey.Identity
	err := row.Scan(&identity.ID, &identity.Email, &identity.Handle,
		&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, passkey.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

var _ passkey.IdentityStore = (*IdentityStore)(nil)
