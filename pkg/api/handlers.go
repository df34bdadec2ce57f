package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/httputil"
	"github.com/platinummonkey/iam/pkg/middleware"
	"github.com/platinummonkey/iam/pkg/observability"
	"github.com/platinummonkey/iam/pkg/storage"
)

// registerUser handles POST /users
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.register")
	defer span.End()

	var req UserCreate
	if !httputil.ParseJSONOrError(w, r, &req) {
		s.countRegistration("invalid")
		return
	}

	reg, errs := validateUserCreate(&req)
	if errs != nil {
		s.countRegistration("invalid")
		httputil.WriteValidationErrors(w, errs)
		return
	}

	_, err := s.store.GetUserByEmail(ctx, reg.Email)
	switch {
	case err == nil:
		s.countRegistration("conflict")
		httputil.WriteConflict(w, "User already exists")
		return
	case !errors.Is(err, storage.ErrNotFound):
		s.internalError(w, r, err, "Failed to look up email")
		return
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		s.internalError(w, r, err, "Failed to hash password")
		return
	}

	id, err := uuid.NewRandom()
	if err != nil {
		s.internalError(w, r, err, "Failed to generate user id")
		return
	}

	now := s.now().UTC()
	user := &auth.User{
		ID:           id,
		Name:         reg.Name,
		Email:        reg.Email,
		DateOfBirth:  reg.DateOfBirth,
		JobTitle:     reg.JobTitle,
		PasswordHash: hash,
		Role:         auth.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.CreateUser(ctx, user)
	if errors.Is(err, storage.ErrDuplicateEmail) {
		s.countRegistration("conflict")
		httputil.WriteConflict(w, "User already exists")
		return
	}
	if err != nil {
		s.internalError(w, r, err, "Failed to create user")
		return
	}

	s.countRegistration("created")
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	observability.FromContext(ctx).WithField("user_id", user.ID.String()).Info("User registered")
	httputil.WriteCreated(w, newUserOut(user))
}

// login handles POST /login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.login")
	defer span.End()

	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	email, errs := validateLoginRequest(&req)
	if errs != nil {
		httputil.WriteValidationErrors(w, errs)
		return
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.hasher.Verify(*req.Password, s.dummyHash)
		s.rejectLogin(w)
		return
	case err != nil:
		s.internalError(w, r, err, "Failed to look up user")
		return
	}

	if !s.hasher.Verify(*req.Password, user.PasswordHash) {
		s.rejectLogin(w)
		return
	}

	now := s.now()
	if err := s.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.internalError(w, r, err, "Failed to record login")
		return
	}

	token, expiresIn, err := s.codec.Issue(user.ID, user.Role, now)
	if err != nil {
		s.internalError(w, r, err, "Failed to issue token")
		return
	}

	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
		s.metrics.TokensIssuedTotal.Inc()
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	httputil.WriteSuccess(w, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
	})
}

// getUser handles GET /users/{user_id}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	raw, err := httputil.ParsePathString(r, "user_id")
	if err != nil {
		httputil.WriteValidationError(w, "user_id", err.Error())
		return
	}
	target, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteValidationError(w, "user_id", "Value is not a valid UUID")
		return
	}

	decision := auth.AuthorizeSelfOrAdmin(identity, target)
	if s.metrics != nil {
		label := "allow"
		if decision == auth.Deny {
			label = "deny"
		}
		s.metrics.AccessDecisionsTotal.WithLabelValues(label).Inc()
	}
	if decision == auth.Deny {
		httputil.WriteForbidden(w, "Forbidden")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), target)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "User not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err, "Failed to load user")
		return
	}

	httputil.WriteSuccess(w, newUserOut(user))
}

func (s *Server) rejectLogin(w http.ResponseWriter) {
	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	}
	httputil.WriteUnauthorized(w, "Invalid credentials")
}

func (s *Server) countRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	observability.FromContext(r.Context()).WithError(err).Error(msg)
	httputil.WriteInternalError(w)
}
