package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/platinummonkey/iam/pkg/audit"
	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/httputil"
	"github.com/platinummonkey/iam/pkg/middleware"
	"github.com/platinummonkey/iam/pkg/observability"
	"github.com/platinummonkey/iam/pkg/storage"
	"github.com/platinummonkey/iam/pkg/swagger"
)

var tracer = otel.Tracer("iam/api")

// DefaultMaxBodyBytes caps request bodies when Config.MaxBodyBytes is unset
const DefaultMaxBodyBytes = 1 << 20

// Config wires the server's collaborators. Metrics, Registry, Health and
// AuditSink are optional.
type Config struct {
	Store   storage.UserStore
	Hasher  *auth.PasswordHasher
	Codec   *auth.TokenCodec
	KeyRing *auth.KeyRing
	Logger  *observability.Logger

	Metrics   *observability.Metrics
	Registry  *prometheus.Registry
	Health    *observability.HealthChecker
	AuditSink audit.Sink

	CORS         httputil.CORSConfig
	MaxBodyBytes int64
	ServiceName  string
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler

	store   storage.UserStore
	hasher  *auth.PasswordHasher
	codec   *auth.TokenCodec
	authMW  *middleware.AuthMiddleware
	logger  *observability.Logger
	metrics *observability.Metrics

	// dummyHash is compared against on unknown emails so both login
	// failure paths cost one bcrypt verification
	dummyHash string
	now       func() time.Time
}

// NewServer creates a new API server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Hasher == nil || cfg.Codec == nil || cfg.KeyRing == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("api: store, hasher, codec, key ring and logger are required")
	}

	dummyHash, err := cfg.Hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare login hash: %w", err)
	}

	gateway := middleware.NewGateway(cfg.Codec, cfg.KeyRing, cfg.Store, cfg.Metrics)

	s := &Server{
		router:    mux.NewRouter(),
		store:     cfg.Store,
		hasher:    cfg.Hasher,
		codec:     cfg.Codec,
		authMW:    middleware.NewAuthMiddleware(gateway, cfg.Logger),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		dummyHash: dummyHash,
		now:       time.Now,
	}

	docs, err := swagger.NewSwaggerHandlers()
	if err != nil {
		return nil, err
	}

	s.setupRoutes(cfg, docs)
	s.handler = s.buildHandler(cfg)
	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(cfg Config, docs *swagger.SwaggerHandlers) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "iam"
	}

	s.router.Use(s.requestLogger)
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(observability.TracingMiddleware(serviceName))

	// Authentication routes
	s.router.HandleFunc("/users", s.registerUser).Methods(http.MethodPost)
	s.router.HandleFunc("/login", s.login).Methods(http.MethodPost)

	// User management routes
	s.router.Handle("/users/{user_id}", s.authMW.Handler(http.HandlerFunc(s.getUser))).Methods(http.MethodGet)

	if cfg.Health != nil {
		observability.RegisterHealthRoutes(s.router, cfg.Health)
	}
	if cfg.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(cfg.Registry)).Methods(http.MethodGet)
	}

	s.RegisterRoutes(docs)
}

// buildHandler wraps the router, outermost first: audit, security headers,
// panic recovery, CORS, request id, body limit
func (s *Server) buildHandler(cfg Config) http.Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	handler := httputil.Chain(
		httputil.RecoveryMiddleware(s.logger),
		httputil.CORSMiddleware(cfg.CORS),
		httputil.RequestIDMiddleware,
		httputil.MaxBytesMiddleware(maxBody),
	)(s.router)
	handler = middleware.SecurityHeaders(handler)

	if cfg.AuditSink != nil {
		handler = audit.NewRecorder(s.codec, cfg.AuditSink, s.logger, s.metrics).Handler(handler)
	}
	return handler
}

// requestLogger stores a request-scoped logger in the context
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		next.ServeHTTP(w, r.WithContext(observability.WithLogger(r.Context(), logger)))
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}
