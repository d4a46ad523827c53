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
	"sort"
	"sync"
	"time"
)

// MemoryIdentityStore is an in-memory IdentityStore for development and tests.
type MemoryIdentityStore struct {
	mu       sync.RWMutex
	byEmail  map[string]*Identity
	byHandle map[string]*Identity
	nextID   int64
}

// NewMemoryIdentityStore creates a new in-memory identity store.
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		byEmail:  make(map[string]*Identity),
		byHandle: make(map[string]*Identity),
		nextID:   1,
	}
}

// CreateIdentity stores a new identity.
func (s *MemoryIdentityStore) CreateIdentity(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[identity.Email]; ok {
		return ErrIdentityExists
	}

	now := time.Now().UTC()
	identity.ID = s.nextID
	identity.CreatedAt = now
	identity.UpdatedAt = now
	s.nextID++

	stored := *identity
	s.byEmail[identity.Email] = &stored
	s.byHandle[string(identity.Handle)] = &stored
	return nil
}

// GetIdentityByEmail retrieves an identity by email.
func (s *MemoryIdentityStore) GetIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byEmail[email]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	copied := *identity
	return &copied, nil
}

// GetIdentityByHandle retrieves an identity by user handle.
func (s *MemoryIdentityStore) GetIdentityByHandle(ctx context.Context, handle []byte) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byHandle[string(handle)]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	copied := *identity
	return &copied, nil
}

// MemoryCredentialStore is an in-memory CredentialStore for development and tests.
type MemoryCredentialStore struct {
	mu         sync.RWMutex
	byExternal map[string]*Credential
	nextID     int64
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byExternal: make(map[string]*Credential),
		nextID:     1,
	}
}

// CreateCredential stores a new credential.
func (s *MemoryCredentialStore) CreateCredential(ctx context.Context, credential *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(credential.ExternalID)
	if _, ok := s.byExternal[key]; ok {
		return ErrCredentialExists
	}

	credential.ID = s.nextID
	s.nextID++

	stored := *credential
	s.byExternal[key] = &stored
	return nil
}

// GetCredential retrieves a credential by external ID.
func (s *MemoryCredentialStore) GetCredential(ctx context.Context, externalID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.byExternal[string(externalID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	copied := *credential
	return &copied, nil
}

// ListCredentials returns all credentials for an identity, newest first.
func (s *MemoryCredentialStore) ListCredentials(ctx context.Context, identityID int64) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var creds []*Credential
	for _, credential := range s.byExternal {
		if credential.IdentityID == identityID {
			copied := *credential
			creds = append(creds, &copied)
		}
	}
	sort.Slice(creds, func(i, j int) bool {
		if creds[i].CreatedAt.Equal(creds[j].CreatedAt) {
			return creds[i].ID > creds[j].ID
		}
		return creds[i].CreatedAt.After(creds[j].CreatedAt)
	})
	return creds, nil
}

// UpdateSignCount advances a credential's signature counter.
func (s *MemoryCredentialStore) UpdateSignCount(ctx context.Context, externalID []byte, signCount uint32, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, ok := s.byExternal[string(externalID)]
	if !ok {
		return ErrCredentialNotFound
	}
	// Counter-less authenticators report zero forever; everything else must
	// strictly advance.
	if !(signCount > credential.SignCount || (signCount == 0 && credential.SignCount == 0)) {
		return ErrCounterNotAdvanced
	}
	credential.SignCount = signCount
	credential.LastUsedAt = usedAt
	return nil
}

// DeleteCredential removes a credential owned by the identity.
func (s *MemoryCredentialStore) DeleteCredential(ctx context.Context, identityID int64, externalID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(externalID)
	credential, ok := s.byExternal[key]
	if !ok || credential.IdentityID != identityID {
		return ErrCredentialNotFound
	}
	delete(s.byExternal, key)
	return nil
}

// Compile-time interface checks.
var (
	_ IdentityStore   = (*MemoryIdentityStore)(nil)
	_ CredentialStore = (*MemoryCredentialStore)(nil)
)
