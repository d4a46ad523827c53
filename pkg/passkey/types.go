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
	"crypto/rand"
	"net/mail"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// UserHandleSize is the size in bytes of a generated user handle.
const UserHandleSize = 16

// Identity is an account known to the relying party. The Handle is an opaque
// random identifier handed to authenticators in place of the email; it never
// changes for the lifetime of the identity.
type Identity struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Handle    []byte    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential is a registered passkey bound to an identity.
type Credential struct {
	ID             int64     `json:"id"`
	IdentityID     int64     `json:"identity_id"`
	ExternalID     []byte    `json:"external_id"`
	PublicKey      []byte    `json:"public_key"`
	AttestationType string   `json:"attestation_type"`
	Transports     []string  `json:"transports"`
	AAGUID         []byte    `json:"aaguid"`
	SignCount      uint32    `json:"sign_count"`
	Attachment     string    `json:"attachment"`
	UserPresent    bool      `json:"user_present"`
	UserVerified   bool      `json:"user_verified"`
	BackupEligible bool      `json:"backup_eligible"`
	BackupState    bool      `json:"backup_state"`
	Nickname       string    `json:"nickname"`
	CreatedAt      time.Time `json:"created_at"`
	LastUsedAt     time.Time `json:"last_used_at"`
}

// toWebauthn converts the stored credential to the library representation.
func (c *Credential) toWebauthn() webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, t := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:              c.ExternalID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.UserPresent,
			UserVerified:   c.UserVerified,
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:     c.AAGUID,
			SignCount:  c.SignCount,
			Attachment: protocol.AuthenticatorAttachment(c.Attachment),
		},
	}
}

// newCredential builds a stored credential from a freshly verified registration.
func newCredential(identityID int64, wc *webauthn.Credential, nickname string, now time.Time) *Credential {
	transports := make([]string, 0, len(wc.Transport))
	for _, t := range wc.Transport {
		transports = append(transports, string(t))
	}
	return &Credential{
		IdentityID:      identityID,
		ExternalID:      wc.ID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transports:      transports,
		AAGUID:          wc.Authenticator.AAGUID,
		SignCount:       wc.Authenticator.SignCount,
		Attachment:      string(wc.Authenticator.Attachment),
		UserPresent:     wc.Flags.UserPresent,
		UserVerified:    wc.Flags.UserVerified,
		BackupEligible:  wc.Flags.BackupEligible,
		BackupState:     wc.Flags.BackupState,
		Nickname:        nickname,
		CreatedAt:       now,
		LastUsedAt:      now,
	}
}

// NewUserHandle generates a random opaque user handle.
func NewUserHandle() ([]byte, error) {
	handle := make([]byte, UserHandleSize)
	if _, err := rand.Read(handle); err != nil {
		return nil, WrapError("generate user handle", err)
	}
	return handle, nil
}

// NormalizeEmail validates an email address and returns its canonical
// lowercase form.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}

// passkeyNickname derives the default friendly name for a new credential.
func passkeyNickname(now time.Time) string {
	return "Passkey - " + now.UTC().Format(time.RFC3339)
}

// ceremonyUser adapts an identity and its credentials to the webauthn.User
// interface used by the ceremony library.
type ceremonyUser struct {
	identity    *Identity
	credentials []*Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return u.identity.Handle
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.identity.Email
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.identity.Email
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(u.credentials))
	for _, c := range u.credentials {
		creds = append(creds, c.toWebauthn())
	}
	return creds
}
