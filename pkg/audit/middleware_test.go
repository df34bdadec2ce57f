package audit

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/observability"
)

// memorySink keeps records in memory
type memorySink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *memorySink) Write(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func newCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{
		Algorithm:  "RS256",
		SigningKey: key,
		Issuer:     "iam-service",
		Audience:   "iam-service",
	})
	require.NoError(t, err)
	return codec
}

func TestRecorder_RecordsFinalStatusAndClaims(t *testing.T) {
	codec := newCodec(t)
	subject := uuid.New()
	token, _, err := codec.Issue(subject, auth.RoleUser, time.Now())
	require.NoError(t, err)

	sink := &memorySink{}
	recorder := NewRecorder(codec, sink, observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}), nil)

	handler := recorder.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Forbidden"}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil)
	req.RemoteAddr = "192.0.2.10:6000"
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, `{"error":"Forbidden"}`, rec.Body.String())

	require.Len(t, sink.records, 1)
	got := sink.records[0]
	assert.Equal(t, 403, got.Status)
	assert.Equal(t, subject.String(), got.UserID)
	assert.Equal(t, "user", got.Role)
	assert.NotEmpty(t, got.TokenID)
	assert.Equal(t, "192.0.2.10", got.ClientIP)
	assert.Equal(t, "6000", got.ClientPort)
}

func TestRecorder_UnverifiedClaimsStillRecorded(t *testing.T) {
	// Tokens from an untrusted signer or with a bogus alg are still audited with their claims
	subject := uuid.New()
	forger := newCodec(t)
	signed, _, err := forger.Issue(subject, auth.RoleAdmin, time.Now())
	require.NoError(t, err)

	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(`{"sub":"` + subject.String() + `","role":"admin","jti":"abc"}`))
	unknownAlg := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"XX999"}`)) + "." + payload + ".c2ln"
	noAlg := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT"}`)) + "." + payload + ".c2ln"

	tests := []struct {
		name    string
		token   string
		wantJTI string
	}{
		{"foreign signature", signed, ""},
		{"unknown alg", unknownAlg, "abc"},
		{"missing alg", noAlg, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			recorder := NewRecorder(newCodec(t), sink, observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}), nil)
			handler := recorder.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))

			req := httptest.NewRequest(http.MethodGet, "/users/x", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			require.Len(t, sink.records, 1)
			rec := sink.records[0]
			assert.Equal(t, 401, rec.Status)
			assert.Equal(t, subject.String(), rec.UserID)
			assert.Equal(t, "admin", rec.Role)
			if tt.wantJTI != "" {
				assert.Equal(t, tt.wantJTI, rec.TokenID)
			} else {
				assert.NotEmpty(t, rec.TokenID)
			}
		})
	}
}

func TestRecorder_GarbageTokenAndDefaultStatus(t *testing.T) {
	sink := &memorySink{}
	recorder := NewRecorder(newCodec(t), sink, observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}), nil)
	handler := recorder.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, sink.records, 1)
	line := sink.records[0].String()
	assert.Contains(t, line, "status=200")
	assert.Contains(t, line, "user_id=<NA> role=<NA> jti=<NA>")
}

func TestRecorder_SinkFailureDoesNotAffectResponse(t *testing.T) {
	var logs bytes.Buffer
	sink := &memorySink{err: errors.New("disk full")}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	recorder := NewRecorder(newCodec(t), sink, observability.NewLogger(observability.InfoLevel, &logs), metrics)

	handler := recorder.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", nil))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.AuditWriteFailures))
	assert.Equal(t, 1, strings.Count(logs.String(), "disk full"))
}

func TestLogrusSink_Format(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogrusSink(&buf)
	sink.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, sink.Write(Record{Method: "GET", Path: "/healthz", Status: 200}))

	assert.Equal(t,
		"2024-05-01T12:00:00Z - audit - INFO - method=GET path=/healthz status=200 client_ip=<NA> client_port=<NA> request_id=<NA> user_id=<NA> role=<NA> jti=<NA>\n",
		buf.String())
}

func TestLogrusSink_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogrusSink(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.Write(Record{Method: "POST", Path: "/login", Status: 401}))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, line := range lines {
		assert.Contains(t, line, " - audit - INFO - method=POST path=/login status=401 ")
		assert.True(t, strings.HasSuffix(line, "jti=<NA>"))
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestLogrusSink_ReturnsWriteErrors(t *testing.T) {
	err := NewLogrusSink(failingWriter{}).Write(Record{})
	assert.ErrorContains(t, err, "closed")
}
