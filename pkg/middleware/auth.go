package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/contextkeys"
	"github.com/platinummonkey/iam/pkg/httputil"
	"github.com/platinummonkey/iam/pkg/observability"
	"github.com/platinummonkey/iam/pkg/storage"
)

var tracer = otel.Tracer("iam/middleware")

// Gateway turns an Authorization header into the caller's current identity
type Gateway struct {
	codec   *auth.TokenCodec
	ring    *auth.KeyRing
	store   storage.UserStore
	metrics *observability.Metrics
}

// NewGateway creates a gateway. metrics may be nil.
func NewGateway(codec *auth.TokenCodec, ring *auth.KeyRing, store storage.UserStore, metrics *observability.Metrics) *Gateway {
	return &Gateway{
		codec:   codec,
		ring:    ring,
		store:   store,
		metrics: metrics,
	}
}

// Resolve verifies the bearer token in header against the current key set
// and loads the subject's stored record. The role comes from the record,
// not the token, so a role change applies to tokens already issued.
//
// Errors are auth.ErrNotAuthenticated (no bearer credentials),
// auth.ErrInvalidToken (anything wrong with the token or its subject), or a
// wrapped store failure.
func (g *Gateway) Resolve(ctx context.Context, header string, now time.Time) (auth.Identity, error) {
	ctx, span := tracer.Start(ctx, "gateway.resolve")
	defer span.End()

	identity, err := g.resolve(ctx, header, now)
	outcome := "success"
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("user.role", identity.Role))
	case errors.Is(err, auth.ErrNotAuthenticated):
		outcome = "missing"
	case errors.Is(err, auth.ErrInvalidToken):
		outcome = "invalid"
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity lookup failed")
	}
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if g.metrics != nil {
		g.metrics.TokenVerificationsTotal.WithLabelValues(outcome).Inc()
	}

	return identity, err
}

func (g *Gateway) resolve(ctx context.Context, header string, now time.Time) (auth.Identity, error) {
	token, ok := bearerToken(header)
	if !ok {
		return auth.Identity{}, auth.ErrNotAuthenticated
	}

	claims, err := g.codec.Verify(token, g.ring.Current(), now)
	if err != nil {
		return auth.Identity{}, auth.ErrInvalidToken
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return auth.Identity{}, auth.ErrInvalidToken
	}

	user, err := g.store.GetUserByID(ctx, subject)
	if errors.Is(err, storage.ErrNotFound) {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("failed to load token subject: %w", err)
	}

	return auth.Identity{ID: user.ID, Role: user.Role}, nil
}

// bearerToken extracts the credentials of a "Bearer" Authorization header.
// The scheme is case-insensitive; empty credentials count as absent.
func bearerToken(header string) (string, bool) {
	scheme, credentials, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return "", false
	}
	return credentials, true
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the resolved identity in the request context
type AuthMiddleware struct {
	gateway *Gateway
	logger  *observability.Logger
	now     func() time.Time
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(gateway *Gateway, logger *observability.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.gateway.Resolve(r.Context(), r.Header.Get("Authorization"), m.now())
		switch {
		case errors.Is(err, auth.ErrNotAuthenticated):
			httputil.WriteUnauthorized(w, "Not authenticated")
			return
		case errors.Is(err, auth.ErrInvalidToken):
			httputil.WriteUnauthorized(w, "Invalid token")
			return
		case err != nil:
			m.logger.WithError(err).WithField("request_id", contextkeys.GetRequestID(r.Context())).
				Error("Identity resolution failed")
			httputil.WriteInternalError(w)
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		ctx = contextkeys.WithUserID(ctx, identity.ID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity extracts the resolved identity from request
func GetIdentity(r *http.Request) (auth.Identity, bool) {
	identity, ok := r.Context().Value(contextkeys.IdentityKey).(auth.Identity)
	return identity, ok
}
