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
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-moneta/pkg/passkey"
)

const credentialColumnsPattern = `SELECT id, identity_id, external_id, public_key, attestation_type, transports, aaguid, sign_count, attachment, user_present, user_verified, backup_eligible, backup_state, nickname, created_at, last_used_at FROM credentials`

func testCredential(now time.Time) *passkey.Credential {
	return &passkey.Credential{
		IdentityID:      1,
		ExternalID:      []byte("credential-id"),
		PublicKey:       []byte("public-key"),
		AttestationType: "none",
		Transports:      []string{"internal"},
		AAGUID:          []byte("0123456789abcdef"),
		SignCount:       0,
		Attachment:      "platform",
		UserPresent:     true,
		UserVerified:    true,
		BackupEligible:  true,
		BackupState:     false,
		Nickname:        "Passkey - " + now.Format(time.RFC3339),
		CreatedAt:       now,
		LastUsedAt:      now,
	}
}

func credentialRow(c *passkey.Credential, id int64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "identity_id", "external_id", "public_key", "attestation_type",
		"transports", "aaguid", "sign_count", "attachment", "user_present",
		"user_verified", "backup_eligible", "backup_state", "nickname",
		"created_at", "last_used_at",
	}).AddRow(id, c.IdentityID, c.ExternalID, c.PublicKey, c.AttestationType,
		c.Transports, c.AAGUID, int64(c.SignCount), c.Attachment, c.UserPresent,
		c.UserVerified, c.BackupEligible, c.BackupState, c.Nickname,
		c.CreatedAt, c.LastUsedAt)
}

func TestCredentialStore_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewCredentialStore(db)
	ctx := context.Background()
	c := testCredential(time.Now().UTC())

	// OK
	mock.ExpectQuery(`INSERT INTO credentials`).
		WithArgs(c.IdentityID, c.ExternalID, c.PublicKey, c.AttestationType,
			c.Transports, c.AAGUID, int64(c.SignCount), c.Attachment,
			c.UserPresent, c.UserVerified, c.BackupEligible, c.BackupState,
			c.Nickname, c.CreatedAt, c.LastUsedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)))
	require.NoError(t, s.CreateCredential(ctx, c))
	require.Equal(t, int64(10), c.ID)

	// Unique violation
	mock.ExpectQuery(`INSERT INTO credentials`).
		WithArgs(c.IdentityID, c.ExternalID, c.PublicKey, c.AttestationType,
			c.Transports, c.AAGUID, int64(c.SignCount), c.Attachment,
			c.UserPresent, c.UserVerified, c.BackupEligible, c.BackupState,
			c.Nickname, c.CreatedAt, c.LastUsedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := s.CreateCredential(ctx, c)
	require.ErrorIs(t, err, passkey.ErrCredentialExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStore_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewCredentialStore(db)
	ctx := context.Background()
	c := testCredential(time.Now().UTC())

	mock.ExpectQuery(credentialColumnsPattern + ` WHERE external_id=\$1`).
		WithArgs(c.ExternalID).
		WillReturnRows(credentialRow(c, 10))
	got, err := s.GetCredential(ctx, c.ExternalID)
	require.NoError(t, err)
	require.Equal(t, int64(10), got.ID)
	require.Equal(t, c.ExternalID, got.ExternalID)
	require.Equal(t, c.Transports, got.Transports)

	mock.ExpectQuery(credentialColumnsPattern + ` WHERE external_id=\$1`).
		WithArgs([]byte("missing")).
		WillReturnError(pgx.ErrNoRows)
	_, err = s.GetCredential(ctx, []byte("missing"))
	require.ErrorIs(t, err, passkey.ErrCredentialNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStore_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewCredentialStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	newer := testCredential(now)
	older := testCredential(now.Add(-time.Hour))
	older.ExternalID = []byte("older-credential")

	rows := credentialRow(newer, 11)
	rows.AddRow(int64(10), older.IdentityID, older.ExternalID, older.PublicKey,
		older.AttestationType, older.Transports, older.AAGUID, int64(older.SignCount),
		older.Attachment, older.UserPresent, older.UserVerified,
		older.BackupEligible, older.BackupState, older.Nickname,
		older.CreatedAt, older.LastUsedAt)

	mock.ExpectQuery(credentialColumnsPattern + ` WHERE identity_id=\$1 ORDER BY created_at DESC, id DESC`).
		WithArgs(int64(1)).
		WillReturnRows(rows)
	credentials, err := s.ListCredentials(ctx, 1)
	require.NoError(t, err)
	require.Len(t, credentials, 2)
	require.Equal(t, newer.ExternalID, credentials[0].ExternalID)
	require.Equal(t, older.ExternalID, credentials[1].ExternalID)

	// Empty result is not an error
	mock.ExpectQuery(credentialColumnsPattern + ` WHERE identity_id=\$1 ORDER BY created_at DESC, id DESC`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "identity_id", "external_id", "public_key", "attestation_type",
			"transports", "aaguid", "sign_count", "attachment", "user_present",
			"user_verified", "backup_eligible", "backup_state", "nickname",
			"created_at", "last_used_at",
		}))
	credentials, err = s.ListCredentials(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, credentials)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStore_UpdateSignCount(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewCredentialStore(db)
	ctx := context.Background()
	usedAt := time.Now().UTC()
	externalID := []byte("credential-id")

	const updatePattern = `UPDATE credentials SET sign_count = \$2, last_used_at = \$3 WHERE external_id = \$1 AND \(sign_count < \$2 OR \(sign_count = 0 AND \$2 = 0\)\)`

	// Counter advances
	mock.ExpectExec(updatePattern).
		WithArgs(externalID, int64(5), usedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.UpdateSignCount(ctx, externalID, 5, usedAt))

	// Counter does not advance on an existing credential
	mock.ExpectExec(updatePattern).
		WithArgs(externalID, int64(5), usedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM credentials WHERE external_id=\$1\)`).
		WithArgs(externalID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	err := s.UpdateSignCount(ctx, externalID, 5, usedAt)
	require.ErrorIs(t, err, passkey.ErrCounterNotAdvanced)

	// Missing credential
	mock.ExpectExec(updatePattern).
		WithArgs([]byte("missing"), int64(5), usedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM credentials WHERE external_id=\$1\)`).
		WithArgs([]byte("missing")).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	err = s.UpdateSignCount(ctx, []byte("missing"), 5, usedAt)
	require.ErrorIs(t, err, passkey.ErrCredentialNotFound)

	// Counter-less authenticators stay at zero
	mock.ExpectExec(updatePattern).
		WithArgs(externalID, int64(0), usedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.UpdateSignCount(ctx, externalID, 0, usedAt))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStore_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewCredentialStore(db)
	ctx := context.Background()
	externalID := []byte("credential-id")

	const deletePattern = `DELETE FROM credentials WHERE identity_id=\$1 AND external_id=\$2`

	mock.ExpectExec(deletePattern).
		WithArgs(int64(1), externalID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, s.DeleteCredential(ctx, 1, externalID))

	// Wrong owner deletes nothing
	mock.ExpectExec(deletePattern).
		WithArgs(int64(2), externalID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err := s.DeleteCredential(ctx, 2, externalID)
	require.ErrorIs(t, err, passkey.ErrCredentialNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
