package audit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/iam/pkg/auth"
)

// NotAvailable marks a field that could not be determined
const NotAvailable = "<NA>"

// ClaimDecoder reads claims from a bearer token without verifying it
type ClaimDecoder interface {
	DecodeUnverified(token string) auth.UnverifiedClaims
}

// Record is one audited request. Identity fields come from the raw token
// and are informational only: they are recorded even when the token is
// forged or expired.
type Record struct {
	Method     string
	Path       string
	Status     int
	ClientIP   string
	ClientPort string
	RequestID  string
	UserID     string
	Role       string
	TokenID    string
}

// String renders the record as a single key=value line
func (r Record) String() string {
	var b strings.Builder
	b.Grow(160)
	b.WriteString("method=")
	b.WriteString(orNA(r.Method))
	b.WriteString(" path=")
	b.WriteString(orNA(r.Path))
	b.WriteString(" status=")
	if r.Status > 0 {
		b.WriteString(strconv.Itoa(r.Status))
	} else {
		b.WriteString(NotAvailable)
	}
	b.WriteString(" client_ip=")
	b.WriteString(orNA(r.ClientIP))
	b.WriteString(" client_port=")
	b.WriteString(orNA(r.ClientPort))
	b.WriteString(" request_id=")
	b.WriteString(orNA(r.RequestID))
	b.WriteString(" user_id=")
	b.WriteString(orNA(r.UserID))
	b.WriteString(" role=")
	b.WriteString(orNA(r.Role))
	b.WriteString(" jti=")
	b.WriteString(orNA(r.TokenID))
	return b.String()
}

func orNA(v string) string {
	if v == "" {
		return NotAvailable
	}
	return v
}

// NewRecord captures everything known before the handler runs. Status is
// filled in afterwards.
func NewRecord(r *http.Request, decoder ClaimDecoder) Record {
	rec := Record{
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: r.Header.Get("X-Request-ID"),
	}

	if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		rec.ClientIP = host
		rec.ClientPort = port
	}

	if token, ok := bearerToken(r.Header.Get("Authorization")); ok && decoder != nil {
		claims := decoder.DecodeUnverified(token)
		rec.UserID = claims.Subject
		rec.Role = claims.Role
		rec.TokenID = claims.TokenID
	}

	return rec
}

// bearerToken returns what follows a case-insensitive "Bearer " prefix
func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
