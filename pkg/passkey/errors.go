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
	"errors"
	"fmt"
)

// Sentinel errors for passkey ceremony operations.
var (
	// ErrInvalidEmail is returned when an email address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrIdentityNotFound is returned when no identity matches the given email or handle.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrIdentityExists is returned when creating an identity whose email is already taken.
	ErrIdentityExists = errors.New("identity already exists")

	// ErrUnknownUserHandle is returned when an asserted user handle matches no identity.
	ErrUnknownUserHandle = errors.New("unknown user handle")

	// ErrCredentialNotFound is returned when a credential cannot be found for the
	// resolved identity. A credential owned by a different identity is reported
	// the same way.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists is returned when registering a credential whose
	// external ID is already stored.
	ErrCredentialExists = errors.New("credential already registered")

	// ErrChallengeNotFound is returned when no ceremony challenge exists for the
	// correlation key, either because it expired, was never issued, or was
	// already consumed. The caller must restart the ceremony.
	ErrChallengeNotFound = errors.New("ceremony challenge not found or expired")

	// ErrMalformedResponse is returned when the authenticator response cannot be parsed.
	ErrMalformedResponse = errors.New("malformed authenticator response")

	// ErrRegistrationFailed is returned when attestation verification fails.
	ErrRegistrationFailed = errors.New("registration verification failed")

	// ErrAssertionFailed is returned when assertion verification fails.
	ErrAssertionFailed = errors.New("assertion verification failed")

	// ErrPossibleClone is returned when the signature counter did not advance,
	// indicating a possibly cloned authenticator. The stored counter is left
	// untouched and no session may be issued.
	ErrPossibleClone = errors.New("possible cloned authenticator detected")

	// ErrCounterNotAdvanced is returned by credential stores when a conditional
	// counter update found the stored counter already at or past the new value.
	ErrCounterNotAdvanced = errors.New("signature counter not advanced")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// CeremonyError wraps an error with the ceremony operation that failed.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new CeremonyError with the given operation and error.
func NewError(op string, err error) error {
	return &CeremonyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsIdentityNotFound returns true if the error indicates an identity was not found.
func IsIdentityNotFound(err error) bool {
	return errors.Is(err, ErrIdentityNotFound)
}

// IsCredentialNotFound returns true if the error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsChallengeNotFound returns true if the error indicates a missing, expired,
// or already-consumed challenge.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsVerificationFailed returns true if the error indicates a cryptographic
// verification failure in either ceremony.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrRegistrationFailed) || errors.Is(err, ErrAssertionFailed)
}

// IsPossibleClone returns true if the error indicates a possible cloned authenticator.
func IsPossibleClone(err error) bool {
	return errors.Is(err, ErrPossibleClone)
}
