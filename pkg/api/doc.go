// Package api provides the HTTP server for the IAM service.
//
// # Overview
//
// The server registers accounts, exchanges credentials for signed access
// tokens, and serves user records to callers allowed to read them. It is
// built on gorilla/mux and wraps the router with the request audit trail,
// security headers, panic recovery, CORS, request ids and a body size limit.
//
// # Endpoints
//
//	POST /users            Register (201, 409 "User already exists", 422)
//	POST /login            Exchange email and password for a token (200, 401, 422)
//	GET  /users/{user_id}  Read a user; self or admin only (200, 401, 403, 404, 422)
//	GET  /healthz          Liveness
//	GET  /healthz/ready    Dependency readiness
//	GET  /metrics          Prometheus exposition
//	GET  /openapi.json     API description, also /docs and /redoc
//
// # Usage
//
//	server, err := api.NewServer(api.Config{
//		Store:   userStore,
//		Hasher:  auth.NewPasswordHasher(12),
//		Codec:   codec,
//		KeyRing: ring,
//		Logger:  logger,
//	})
//	http.ListenAndServe(":8000", server)
//
// # Error Responses
//
// Errors are JSON objects with an "error" message. Validation failures use
// "Validation failed" and list per-field messages under "details".
//
// # Related Packages
//
//   - pkg/auth: Credential hashing, token codec and access policy
//   - pkg/middleware: Bearer authentication and security headers
//   - pkg/audit: Request audit trail
//   - pkg/storage: User persistence
package api
