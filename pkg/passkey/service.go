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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-moneta/pkg/metrics"
)

// Service runs the relying party side of passkey registration and
// authentication ceremonies.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	identities IdentityStore
	creds      CredentialStore
	challenges *ChallengeCache
	now        func() time.Time
	configured bool
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// IdentityStore is the identity persistence layer (required).
	IdentityStore IdentityStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// Challenges is an optional pre-built challenge cache. If nil, one is
	// created from the config's TTL and capacity.
	Challenges *ChallengeCache
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.IdentityStore == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.toWebauthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	challenges := params.Challenges
	if challenges == nil {
		challenges = NewChallengeCache(params.Config.ChallengeTTL, params.Config.ChallengeCapacity)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		identities: params.IdentityStore,
		creds:      params.CredentialStore,
		challenges: challenges,
		now:        time.Now,
		configured: true,
	}, nil
}

// ResolveIdentity finds the identity for an email address, creating it with a
// fresh user handle when it does not exist yet. A create that loses the race
// against a concurrent resolver falls back to reading the winner's row.
func (s *Service) ResolveIdentity(ctx context.Context, email string) (*Identity, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err == nil {
		return identity, nil
	}
	if !IsIdentityNotFound(err) {
		return nil, WrapError("get identity", err)
	}

	handle, err := NewUserHandle()
	if err != nil {
		return nil, err
	}
	identity = &Identity{
		Email:  email,
		Handle: handle,
	}
	err = s.identities.CreateIdentity(ctx, identity)
	if err == nil {
		metrics.RecordIdentityCreated()
		return identity, nil
	}
	if errors.Is(err, ErrIdentityExists) {
		identity, err = s.identities.GetIdentityByEmail(ctx, email)
		if err != nil {
			return nil, WrapError("get identity after conflict", err)
		}
		return identity, nil
	}
	return nil, WrapError("create identity", err)
}

// BeginRegistration starts a registration ceremony for the email address,
// creating the identity if needed. The pending challenge is cached under the
// email and must be finished with the same correlation key.
func (s *Service) BeginRegistration(ctx context.Context, email string) (*protocol.CredentialCreation, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	identity, err := s.ResolveIdentity(ctx, email)
	if err != nil {
		return nil, err
	}

	existing, err := s.creds.ListCredentials(ctx, identity.ID)
	if err != nil {
		return nil, WrapError("list credentials", err)
	}

	// Exclude already-registered credentials so the authenticator refuses to
	// create a duplicate.
	excludeList := make([]protocol.CredentialDescriptor, len(existing))
	for i, cred := range existing {
		wc := cred.toWebauthn()
		excludeList[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: wc.ID,
			Transport:    wc.Transport,
		}
	}

	user := &ceremonyUser{identity: identity, credentials: existing}
	options, session, err := s.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	s.challenges.Put(identity.Email, ceremonyRegistration, *session)
	return options, nil
}

// FinishRegistration completes a registration ceremony. The cached challenge
// for the email is consumed whether or not verification succeeds, so a second
// finish with the same response is rejected.
func (s *Service) FinishRegistration(ctx context.Context, email string, response *protocol.ParsedCredentialCreationData) (*Credential, *Identity, error) {
	if !s.configured {
		return nil, nil, ErrNotConfigured
	}

	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if response == nil {
		return nil, nil, ErrMalformedResponse
	}

	session, err := s.challenges.Take(email, ceremonyRegistration)
	if err != nil {
		return nil, nil, err
	}

	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		return nil, nil, WrapError("get identity", err)
	}

	existing, err := s.creds.ListCredentials(ctx, identity.ID)
	if err != nil {
		return nil, nil, WrapError("list credentials", err)
	}

	user := &ceremonyUser{identity: identity, credentials: existing}
	wc, err := s.webauthn.CreateCredential(user, session, response)
	if err != nil {
		return nil, nil, NewError("finish registration", fmt.Errorf("%w: %v", ErrRegistrationFailed, err))
	}

	now := s.now().UTC()
	credential := newCredential(identity.ID, wc, passkeyNickname(now), now)
	if err := s.creds.CreateCredential(ctx, credential); err != nil {
		return nil, nil, WrapError("save credential", err)
	}

	return credential, identity, nil
}

// BeginAuthentication starts an authentication ceremony for the email
// address. When the email is unknown or has no credentials the options fall
// back to the discoverable flow, so callers cannot probe which emails are
// registered.
func (s *Service) BeginAuthentication(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var options *protocol.CredentialAssertion
	var session *webauthn.SessionData

	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil && !IsIdentityNotFound(err) {
		return nil, WrapError("get identity", err)
	}

	if identity != nil {
		creds, credErr := s.creds.ListCredentials(ctx, identity.ID)
		if credErr != nil {
			return nil, WrapError("list credentials", credErr)
		}
		if len(creds) > 0 {
			user := &ceremonyUser{identity: identity, credentials: creds}
			options, session, err = s.webauthn.BeginLogin(user)
		} else {
			identity = nil
		}
	}
	if identity == nil {
		options, session, err = s.webauthn.BeginDiscoverableLogin()
	}
	if err != nil {
		return nil, WrapError("begin authentication", err)
	}

	s.challenges.Put(email, ceremonyAuthentication, *session)
	return options, nil
}

// BeginDiscoverableAuthentication starts a usernameless authentication
// ceremony. The caller supplies an opaque correlation key that stands in for
// the email when finishing the ceremony.
func (s *Service) BeginDiscoverableAuthentication(ctx context.Context, key string) (*protocol.CredentialAssertion, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if key == "" {
		return nil, NewError("begin discoverable authentication", fmt.Errorf("correlation key is required"))
	}

	options, session, err := s.webauthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, WrapError("begin discoverable authentication", err)
	}

	s.challenges.Put(key, ceremonyAuthentication, *session)
	return options, nil
}

// FinishAuthentication completes an authentication ceremony started with
// either BeginAuthentication or BeginDiscoverableAuthentication. The cached
// challenge is consumed whether or not verification succeeds. An assertion
// naming a credential that is not registered to the asserting identity is
// reported as ErrCredentialNotFound. On success the credential's signature
// counter is advanced; a counter that failed to advance is reported as
// ErrPossibleClone without touching stored state.
func (s *Service) FinishAuthentication(ctx context.Context, key string, response *protocol.ParsedCredentialAssertionData) (*Identity, *Credential, error) {
	if !s.configured {
		return nil, nil, ErrNotConfigured
	}
	if response == nil {
		return nil, nil, ErrMalformedResponse
	}

	session, err := s.challenges.Take(key, ceremonyAuthentication)
	if err != nil {
		return nil, nil, err
	}

	var identity *Identity
	var validated *webauthn.Credential

	if len(session.UserID) == 0 {
		validated, err = s.webauthn.ValidateDiscoverableLogin(s.discoverableHandler(ctx, &identity), session, response)
	} else {
		identity, err = s.identities.GetIdentityByHandle(ctx, session.UserID)
		if err != nil {
			return nil, nil, WrapError("get identity", err)
		}
		creds, credErr := s.creds.ListCredentials(ctx, identity.ID)
		if credErr != nil {
			return nil, nil, WrapError("list credentials", credErr)
		}
		if !ownsCredential(creds, response.RawID) {
			return nil, nil, NewError("finish authentication", ErrCredentialNotFound)
		}
		user := &ceremonyUser{identity: identity, credentials: creds}
		validated, err = s.webauthn.ValidateLogin(user, session, response)
	}
	if err != nil {
		if errors.Is(err, ErrUnknownUserHandle) {
			return nil, nil, NewError("finish authentication", ErrUnknownUserHandle)
		}
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, nil, NewError("finish authentication", ErrCredentialNotFound)
		}
		return nil, nil, NewError("finish authentication", fmt.Errorf("%w: %v", ErrAssertionFailed, err))
	}

	// The library only flags a non-advancing counter. Treat it as a hard
	// failure: a cloned authenticator replays old counter values.
	if validated.Authenticator.CloneWarning {
		return nil, nil, NewError("finish authentication", ErrPossibleClone)
	}

	credential, err := s.creds.GetCredential(ctx, validated.ID)
	if err != nil {
		return nil, nil, WrapError("get credential", err)
	}
	if credential.IdentityID != identity.ID {
		return nil, nil, NewError("finish authentication", ErrCredentialNotFound)
	}

	now := s.now().UTC()
	err = s.creds.UpdateSignCount(ctx, validated.ID, validated.Authenticator.SignCount, now)
	if err != nil {
		if errors.Is(err, ErrCounterNotAdvanced) {
			return nil, nil, NewError("finish authentication", ErrPossibleClone)
		}
		return nil, nil, WrapError("update sign count", err)
	}
	credential.SignCount = validated.Authenticator.SignCount
	credential.LastUsedAt = now

	return identity, credential, nil
}

// Credentials returns all credentials registered to the email address,
// newest first.
func (s *Service) Credentials(ctx context.Context, email string) ([]*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		return nil, WrapError("get identity", err)
	}
	return s.creds.ListCredentials(ctx, identity.ID)
}

// Registered reports whether the email address has at least one passkey. An
// unknown email is simply unregistered, not an error.
func (s *Service) Registered(ctx context.Context, email string) (bool, error) {
	if !s.configured {
		return false, ErrNotConfigured
	}

	email, err := NormalizeEmail(email)
	if err != nil {
		return false, err
	}
	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		if IsIdentityNotFound(err) {
			return false, nil
		}
		return false, WrapError("get identity", err)
	}
	creds, err := s.creds.ListCredentials(ctx, identity.ID)
	if err != nil {
		return false, WrapError("list credentials", err)
	}
	return len(creds) > 0, nil
}

// DeleteCredential removes one of the email's registered credentials. A
// credential owned by a different identity is reported as not found.
func (s *Service) DeleteCredential(ctx context.Context, email string, externalID []byte) error {
	if !s.configured {
		return ErrNotConfigured
	}

	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		return WrapError("get identity", err)
	}
	return s.creds.DeleteCredential(ctx, identity.ID, externalID)
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// PendingChallenges returns the number of cached ceremony challenges.
func (s *Service) PendingChallenges() int {
	return s.challenges.Len()
}

// discoverableHandler resolves the asserting identity from the user handle
// carried in a discoverable assertion, recording it in *out.
func (s *Service) discoverableHandler(ctx context.Context, out **Identity) webauthn.DiscoverableUserHandler {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		identity, err := s.identities.GetIdentityByHandle(ctx, userHandle)
		if err != nil {
			if IsIdentityNotFound(err) {
				return nil, ErrUnknownUserHandle
			}
			return nil, err
		}
		creds, err := s.creds.ListCredentials(ctx, identity.ID)
		if err != nil {
			return nil, err
		}
		// A credential registered to some other identity must not
		// validate against this handle's account.
		if !ownsCredential(creds, rawID) {
			return nil, ErrCredentialNotFound
		}
		*out = identity
		return &ceremonyUser{identity: identity, credentials: creds}, nil
	}
}

// ownsCredential reports whether the asserted credential ID belongs to the
// identity's credential set.
func ownsCredential(creds []*Credential, rawID []byte) bool {
	for _, cred := range creds {
		if bytes.Equal(cred.ExternalID, rawID) {
			return true
		}
	}
	return false
}
