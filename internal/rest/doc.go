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

// Package rest provides the HTTP server for the go-moneta passkey service.
//
// The server mounts the passkey ceremony endpoints under /api/v1/passkey,
// serves health probes and Prometheus metrics, and protects session
// introspection with bearer token authentication.
//
// # Server Setup
//
//	server, _ := rest.NewServer(&rest.Config{
//	    Port:     8443,
//	    Passkeys: passkeyhttp.NewHandler(svc).WithTokenIssuer(issuer),
//	    Issuer:   issuer,
//	    CORSOrigins: []string{"https://moneta.example.com"},
//	})
//
//	go server.Start()
//
//	// Graceful shutdown
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # API Endpoints
//
// Health and metrics:
//   - GET /health - Overall health status
//   - GET /health/live - Kubernetes liveness probe
//   - GET /health/ready - Kubernetes readiness probe
//   - GET /health/startup - Kubernetes startup probe
//   - GET /metrics - Prometheus metrics (when enabled)
//
// Passkey ceremonies (under /api/v1/passkey):
//   - POST /registration/begin - Start a registration ceremony
//   - POST /registration/finish - Complete a registration ceremony
//   - GET /registration/status - Check whether an email has a passkey
//   - POST /authentication/begin - Start an authentication ceremony
//   - POST /authentication/finish - Complete an authentication ceremony
//
// Authenticated (bearer session token):
//   - GET /api/v1/passkey/credentials - List the caller's passkeys
//   - DELETE /api/v1/passkey/credentials/{credentialID} - Remove one of the caller's passkeys
//   - GET /api/v1/session - Introspect the current session
//
// # Middleware
//
// Requests pass through panic recovery, correlation ID propagation,
// structured request logging, Prometheus instrumentation, and CORS
// restricted to the configured relying party origins.
package rest
