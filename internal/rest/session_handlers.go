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

package rest

import (
	"net/http"
	"time"
)

// SessionResponse describes the authenticated session.
type SessionResponse struct {
	Email     string    `json:"email"`
	Handle    string    `json:"handle"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionHandler handles GET /api/v1/session requests. It returns the
// claims of the validated bearer token so clients can introspect their
// session.
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r.Context())
	if claims == nil {
		writeErrorWithMessage(w, ErrUnauthorized, "No session", http.StatusUnauthorized)
		return
	}

	resp := SessionResponse{
		Email:  claims.Email(),
		Handle: claims.Handle,
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}

	writeJSON(w, resp, http.StatusOK)
}
