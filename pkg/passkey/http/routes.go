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

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts the ceremony routes on a chi router. These routes are
// unauthenticated: they are how a user obtains a session in the first
// place.
//
// Example:
//
//	handler := passkeyhttp.NewHandler(svc)
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/registration/begin", h.BeginRegistration)
	r.Post("/registration/finish", h.FinishRegistration)
	r.Get("/registration/status", h.RegistrationStatus)
	r.Post("/authentication/begin", h.BeginAuthentication)
	r.Post("/authentication/finish", h.FinishAuthentication)
}

// MountCredentialsChi mounts the credential-management routes. The
// handlers act on the authenticated principal, so mount these behind
// session middleware and configure WithPrincipal; without a principal
// resolver every request is rejected.
func MountCredentialsChi(r chi.Router, h *Handler) {
	r.Get("/credentials", h.ListCredentials)
	r.Delete("/credentials/{credentialID}", h.DeleteCredential)
}

// credentialIDParam extracts the credential ID path parameter.
func credentialIDParam(r *http.Request) string {
	return chi.URLParam(r, "credentialID")
}
