// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// Error bodies share one shape, {"error": "..."}, with "details" added for
// field validation failures:
//
//	httputil.WriteUnauthorized(w, "Invalid token") // adds WWW-Authenticate: Bearer
//	httputil.WriteForbidden(w, "Forbidden")
//	httputil.WriteValidationErrors(w, map[string]string{"email": "invalid email address"})
//
// # Request Parsing
//
//	var req LoginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 422 already written
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(httputil.DefaultCORSConfig()),
//		httputil.RequestIDMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and security header middleware
//   - pkg/audit: Request audit trail
package httputil
