package middleware

import (
	"net/http"
)

// Header values applied to every response unless the handler set them
const (
	ContentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'; base-uri 'none'"
	PermissionsPolicy     = "geolocation=(), microphone=(), camera=()"
)

// baseSecurityHeaders apply to every path
var baseSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

// documentationPaths serve HTML that loads inline scripts, so they skip
// the content and permissions policies
var documentationPaths = map[string]bool{
	"/docs":         true,
	"/redoc":        true,
	"/openapi.json": true,
}

// SecurityHeaders sets hardening headers on every response. Values already
// present when the response is committed are left untouched.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &securityHeaderWriter{
			ResponseWriter: w,
			withPolicies:   !documentationPaths[r.URL.Path],
		}

		next.ServeHTTP(sw, r)

		// Handler wrote nothing; net/http will commit the header map as-is
		sw.apply()
	})
}

// securityHeaderWriter applies the defaults just before headers are sent
type securityHeaderWriter struct {
	http.ResponseWriter
	withPolicies bool
	applied      bool
}

func (sw *securityHeaderWriter) apply() {
	if sw.applied {
		return
	}
	sw.applied = true

	h := sw.Header()
	for _, kv := range baseSecurityHeaders {
		setDefault(h, kv[0], kv[1])
	}
	if sw.withPolicies {
		setDefault(h, "Content-Security-Policy", ContentSecurityPolicy)
		setDefault(h, "Permissions-Policy", PermissionsPolicy)
	}
}

func (sw *securityHeaderWriter) WriteHeader(code int) {
	sw.apply()
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *securityHeaderWriter) Write(b []byte) (int, error) {
	sw.apply()
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (sw *securityHeaderWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func setDefault(h http.Header, key, value string) {
	if _, ok := h[http.CanonicalHeaderKey(key)]; !ok {
		h.Set(key, value)
	}
}
