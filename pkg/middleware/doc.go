// Package middleware provides HTTP middleware for authentication and response hardening.
//
// # Middleware Components
//
// AuthMiddleware: Bearer token authentication
//
//	gateway := middleware.NewGateway(codec, keyRing, userStore, metrics)
//	protected := middleware.NewAuthMiddleware(gateway, logger).Handler(handler)
//	// 401 with WWW-Authenticate: Bearer when the token is missing or invalid,
//	// otherwise the resolved auth.Identity is available via GetIdentity(r)
//
// SecurityHeaders: Default hardening headers
//
//	handler = middleware.SecurityHeaders(handler)
//	// X-Content-Type-Options, X-Frame-Options, Referrer-Policy, Cache-Control,
//	// plus Content-Security-Policy and Permissions-Policy outside the API docs
//
// # Related Packages
//
//   - pkg/auth: Token codec, key ring and access policy
//   - pkg/audit: Request audit trail
package middleware
