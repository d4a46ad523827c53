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
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jeremyhahn/go-moneta/pkg/passkey"
)

const credentialColumns = `id, identity_id, external_id, public_key, attestation_type,
transports, aaguid, sign_count, attachment, user_present, user_verified,
backup_eligible, backup_state, nickname, created_at, last_used_at`

// CredentialStore implements passkey.CredentialStore using PostgreSQL.
type CredentialStore struct{ db *DB }

// NewCredentialStore constructs a credential store.
func NewCredentialStore(db *DB) *CredentialStore { return &CredentialStore{db: db} }

// CreateCredential inserts a new credential row and fills in its generated ID.
func (s *CredentialStore) CreateCredential(ctx context.Context, credential *passkey.Credential) error {
	const q = `
INSERT INTO credentials (identity_id, external_id, public_key, attestation_type,
transports, aaguid, sign_count, attachment, user_present, user_verified,
backup_eligible, backup_state, nickname, created_at, last_used_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id`
	row := s.db.Pool.QueryRow(ctx, q,
		credential.IdentityID, credential.ExternalID, credential.PublicKey,
		credential.AttestationType, credential.Transports, credential.AAGUID,
		int64(credential.SignCount), credential.Attachment, credential.UserPresent,
		credential.UserVerified, credential.BackupEligible, credential.BackupState,
		credential.Nickname, credential.CreatedAt, credential.LastUsedAt)
	err := row.Scan(&credential.ID)
	if isUniqueViolation(err) {
		return passkey.ErrCredentialExists
	}
	return err
}

// GetCredential selects a credential by its authenticator-assigned external ID.
func (s *CredentialStore) GetCredential(ctx context.Context, externalID []byte) (*passkey.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM credentials WHERE external_id=$1`
	credential, err := scanCredential(s.db.Pool.QueryRow(ctx, q, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, passkey.ErrCredentialNotFound
		}
		return nil, err
	}
	return credential, nil
}

// ListCredentials selects all credentials owned by an identity, newest first.
func (s *CredentialStore) ListCredentials(ctx context.Context, identityID int64) ([]*passkey.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM credentials
WHERE identity_id=$1 ORDER BY created_at DESC, id DESC`
	rows, err := s.db.Pool.Query(ctx, q, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credentials []*passkey.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	return credentials, rows.Err()
}

// UpdateSignCount conditionally records a successful assertion. The row is
// only updated when the counter strictly advances or both counters are zero.
func (s *CredentialStore) UpdateSignCount(ctx context.Context, externalID []byte, signCount uint32, usedAt time.Time) error {
	const q = `
UPDATE credentials
SET sign_count = $2, last_used_at = $3
WHERE external_id = $1
  AND (sign_count < $2 OR (sign_count = 0 AND $2 = 0))`
	tag, err := s.db.Pool.Exec(ctx, q, externalID, int64(signCount), usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows means either a missing credential or a counter that failed
	// to advance. Tell them apart for the caller.
	const existsQ = `SELECT EXISTS (SELECT 1 FROM credentials WHERE external_id=$1)`
	var exists bool
	if err := s.db.Pool.QueryRow(ctx, existsQ, externalID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return passkey.ErrCredentialNotFound
	}
	return passkey.ErrCounterNotAdvanced
}

// DeleteCredential removes a credential owned by the given identity.
func (s *CredentialStore) DeleteCredential(ctx context.Context, identityID int64, externalID []byte) error {
	const q = `DELETE FROM credentials WHERE identity_id=$1 AND external_id=$2`
	tag, err := s.db.Pool.Exec(ctx, q, identityID, externalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return passkey.ErrCredentialNotFound
	}
	return nil
}

func scanCredential(row pgx.Row) (*passkey.Credential, error) {
	var credential passkey.Credential
	var signCount int64
	err := row.Scan(&credential.ID, &credential.IdentityID, &credential.ExternalID,
		&credential.PublicKey, &credential.AttestationType, &credential.Transports,
		&credential.AAGUID, &signCount, &credential.Attachment,
		&credential.UserPresent, &credential.UserVerified,
		&credential.BackupEligible, &credential.BackupState,
		&credential.Nickname, &credential.CreatedAt, &credential.LastUsedAt)
	if err != nil {
		return nil, err
	}
	credential.SignCount = uint32(signCount)
	return &credential, nil
}

var _ passkey.CredentialStore = (*CredentialStore)(nil)
