package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		handler      http.HandlerFunc
		wantPolicies bool
		wantFrame    string
		wantStatus   int
	}{
		{
			name: "api path gets every header",
			path: "/users/abc",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			wantPolicies: true,
			wantFrame:    "DENY",
			wantStatus:   http.StatusForbidden,
		},
		{
			name: "implicit 200 via Write",
			path: "/healthz",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"ok"}`))
			},
			wantPolicies: true,
			wantFrame:    "DENY",
			wantStatus:   http.StatusOK,
		},
		{
			name:         "handler writes nothing",
			path:         "/users",
			handler:      func(w http.ResponseWriter, r *http.Request) {},
			wantPolicies: true,
			wantFrame:    "DENY",
			wantStatus:   http.StatusOK,
		},
		{
			name: "docs skip policies",
			path: "/docs",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html></html>"))
			},
			wantPolicies: false,
			wantFrame:    "DENY",
			wantStatus:   http.StatusOK,
		},
		{
			name:         "redoc skips policies",
			path:         "/redoc",
			handler:      func(w http.ResponseWriter, r *http.Request) {},
			wantPolicies: false,
			wantFrame:    "DENY",
			wantStatus:   http.StatusOK,
		},
		{
			name:         "openapi skips policies",
			path:         "/openapi.json",
			handler:      func(w http.ResponseWriter, r *http.Request) {},
			wantPolicies: false,
			wantFrame:    "DENY",
			wantStatus:   http.StatusOK,
		},
		{
			name:         "docs prefix is not exempt",
			path:         "/docs/extra",
			handler:      func(w http.ResponseWriter, r *http.Request) {},
			wantPolicies: true,
			wantFrame:    "DENY",
			wantStatus:   http.StatusOK,
		},
		{
			name: "handler value wins",
			path: "/users",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Frame-Options", "SAMEORIGIN")
				w.WriteHeader(http.StatusCreated)
			},
			wantPolicies: true,
			wantFrame:    "SAMEORIGIN",
			wantStatus:   http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SecurityHeaders(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			h := rec.Header()
			assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
			assert.Equal(t, tt.wantFrame, h.Get("X-Frame-Options"))
			assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
			assert.Equal(t, "no-store", h.Get("Cache-Control"))

			if tt.wantPolicies {
				assert.Equal(t, ContentSecurityPolicy, h.Get("Content-Security-Policy"))
				assert.Equal(t, PermissionsPolicy, h.Get("Permissions-Policy"))
			} else {
				assert.Empty(t, h.Get("Content-Security-Policy"))
				assert.Empty(t, h.Get("Permissions-Policy"))
			}
		})
	}
}

func TestSecurityHeaders_HandlerCSPWins(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, "default-src 'none'", rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, PermissionsPolicy, rec.Header().Get("Permissions-Policy"))
}
