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
	"container/list"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// ceremonyKind distinguishes which ceremony a cached challenge belongs to.
type ceremonyKind int

const (
	ceremonyRegistration ceremonyKind = iota
	ceremonyAuthentication
)

// challengeEntry is a pending ceremony awaiting its finish call.
type challengeEntry struct {
	key       string
	kind      ceremonyKind
	session   webauthn.SessionData
	createdAt time.Time
}

// ChallengeCache holds pending ceremony state keyed by correlation key.
// Entries expire after a fixed TTL and are consumed exactly once, so a
// finished or abandoned ceremony can never be replayed. When the cache is at
// capacity the oldest entry is evicted to make room.
type ChallengeCache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewChallengeCache creates a challenge cache with the given TTL and capacity.
func NewChallengeCache(ttl time.Duration, capacity int) *ChallengeCache {
	return &ChallengeCache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// Put stores a pending ceremony under the correlation key, replacing any
// existing entry for the same key.
func (c *ChallengeCache) Put(key string, kind ceremonyKind, session webauthn.SessionData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	for len(c.entries) >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	entry := &challengeEntry{
		key:       key,
		kind:      kind,
		session:   session,
		createdAt: now,
	}
	c.entries[key] = c.order.PushBack(entry)
}

// Take removes and returns the pending ceremony for the correlation key.
// Returns ErrChallengeNotFound when the key is unknown, expired, or was
// already taken.
func (c *ChallengeCache) Take(key string, kind ceremonyKind) (webauthn.SessionData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return webauthn.SessionData{}, ErrChallengeNotFound
	}
	entry := elem.Value.(*challengeEntry)
	c.removeLocked(elem)

	if entry.kind != kind {
		return webauthn.SessionData{}, ErrChallengeNotFound
	}
	if c.now().Sub(entry.createdAt) >= c.ttl {
		return webauthn.SessionData{}, ErrChallengeNotFound
	}
	return entry.session, nil
}

// Len returns the number of pending ceremonies, including any that have
// expired but not yet been pruned.
func (c *ChallengeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// pruneLocked drops expired entries from the front of the insertion order.
func (c *ChallengeCache) pruneLocked(now time.Time) {
	for {
		oldest := c.order.Front()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*challengeEntry)
		if now.Sub(entry.createdAt) < c.ttl {
			return
		}
		c.removeLocked(oldest)
	}
}

func (c *ChallengeCache) removeLocked(elem *list.Element) {
	entry := c.order.Remove(elem).(*challengeEntry)
	delete(c.entries, entry.key)
}
