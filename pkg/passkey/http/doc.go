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

// Package http provides composable HTTP handlers for passkey ceremonies.
//
// This package allows applications to add passkey authentication to their
// existing HTTP servers without coupling to go-moneta's internal REST
// implementation.
//
// # Usage
//
// Create a handler from a passkey service and mount it on your router:
//
//	svc, _ := passkey.NewService(...)
//	handler := passkeyhttp.NewHandler(svc).WithTokenIssuer(issuer)
//
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
//
// Credential management acts on an authenticated principal. Configure a
// resolver with WithPrincipal and mount those routes behind whatever
// authentication middleware produces it:
//
//	handler.WithPrincipal(principalFromSession)
//	r.Group(func(r chi.Router) {
//	    r.Use(sessionMiddleware)
//	    passkeyhttp.MountCredentialsChi(r, handler)
//	})
//
// # Endpoints
//
// MountChi provides the unauthenticated ceremony endpoints:
//
//	POST   /registration/begin        - Start registration ceremony
//	POST   /registration/finish       - Complete registration
//	GET    /registration/status       - Check whether an email has a passkey
//	POST   /authentication/begin      - Start authentication ceremony
//	POST   /authentication/finish     - Complete authentication, returns token
//
// MountCredentialsChi provides the credential-management endpoints, which
// operate on the authenticated principal and reject anonymous requests:
//
//	GET    /credentials               - List the caller's credentials
//	DELETE /credentials/{id}          - Remove one of the caller's credentials
//
// # Headers
//
// The handlers use the following custom header:
//
//	X-Ceremony-Key: Correlation key returned by begin operations.
//	                Must be included in finish operations.
//
// For email-identified ceremonies the key is the normalized email address;
// for usernameless authentication it is a generated opaque value.
//
// # Response Format
//
// All responses are JSON. Successful responses include the data directly.
// Error responses have the format:
//
//	{
//	    "error": "error_code",
//	    "message": "Human-readable message"
//	}
package http
