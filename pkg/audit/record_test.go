package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/iam/pkg/auth"
)

// stubDecoder returns fixed claims and remembers the token it saw
type stubDecoder struct {
	claims auth.UnverifiedClaims
	seen   string
}

func (d *stubDecoder) DecodeUnverified(token string) auth.UnverifiedClaims {
	d.seen = token
	return d.claims
}

func TestRecord_String(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{
			name: "all fields",
			record: Record{
				Method: "GET", Path: "/users/abc", Status: 403,
				ClientIP: "1.2.3.4", ClientPort: "5555", RequestID: "req-1",
				UserID: "u-1", Role: "user", TokenID: "j-1",
			},
			want: "method=GET path=/users/abc status=403 client_ip=1.2.3.4 client_port=5555 request_id=req-1 user_id=u-1 role=user jti=j-1",
		},
		{
			name:   "missing fields",
			record: Record{Method: "POST", Path: "/login", Status: 200},
			want:   "method=POST path=/login status=200 client_ip=<NA> client_port=<NA> request_id=<NA> user_id=<NA> role=<NA> jti=<NA>",
		},
		{
			name:   "no status",
			record: Record{Method: "GET", Path: "/"},
			want:   "method=GET path=/ status=<NA> client_ip=<NA> client_port=<NA> request_id=<NA> user_id=<NA> role=<NA> jti=<NA>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.String())
		})
	}
}

func TestNewRecord(t *testing.T) {
	claims := auth.UnverifiedClaims{Subject: "sub-1", Role: "admin", TokenID: "jti-1"}

	tests := []struct {
		name       string
		remoteAddr string
		authz      string
		requestID  string
		wantIP     string
		wantPort   string
		wantUser   string
		wantToken  string
	}{
		{
			name:       "bearer token",
			remoteAddr: "10.0.0.1:4242",
			authz:      "Bearer abc.def.ghi",
			requestID:  "req-9",
			wantIP:     "10.0.0.1",
			wantPort:   "4242",
			wantUser:   "sub-1",
			wantToken:  "abc.def.ghi",
		},
		{
			name:       "lower case scheme",
			remoteAddr: "[::1]:80",
			authz:      "bearer xyz",
			wantIP:     "::1",
			wantPort:   "80",
			wantUser:   "sub-1",
			wantToken:  "xyz",
		},
		{
			name:       "basic auth ignored",
			remoteAddr: "10.0.0.1:4242",
			authz:      "Basic dXNlcjpwYXNz",
			wantIP:     "10.0.0.1",
			wantPort:   "4242",
		},
		{
			name:       "unparseable remote addr",
			remoteAddr: "pipe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder := &stubDecoder{claims: claims}
			req := httptest.NewRequest(http.MethodGet, "/users/abc?x=1", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			if tt.requestID != "" {
				req.Header.Set("X-Request-ID", tt.requestID)
			}

			rec := NewRecord(req, decoder)

			assert.Equal(t, "GET", rec.Method)
			assert.Equal(t, "/users/abc", rec.Path)
			assert.Equal(t, tt.wantIP, rec.ClientIP)
			assert.Equal(t, tt.wantPort, rec.ClientPort)
			assert.Equal(t, tt.requestID, rec.RequestID)
			assert.Equal(t, tt.wantUser, rec.UserID)
			assert.Equal(t, tt.wantToken, decoder.seen)
		})
	}
}
