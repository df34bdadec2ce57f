package auth

import (
	"crypto"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenValidity is the lifetime of an access token
const DefaultTokenValidity = time.Hour

// allowedAlgorithms is the asymmetric JWS set. HMAC and "none" are never accepted.
var allowedAlgorithms = map[string]bool{
	"RS256": true, "RS384": true, "RS512": true,
	"PS256": true, "PS384": true, "PS512": true,
	"ES256": true, "ES384": true, "ES512": true,
	"EdDSA": true,
}

// SupportedAlgorithm reports whether alg may be used to sign tokens
func SupportedAlgorithm(alg string) bool {
	return allowedAlgorithms[alg]
}

// TokenCodecConfig configures a TokenCodec
type TokenCodecConfig struct {
	Algorithm  string
	SigningKey crypto.PrivateKey
	Issuer     string
	Audience   string
	Validity   time.Duration
}

// TokenCodec issues and verifies signed access tokens
type TokenCodec struct {
	method     jwt.SigningMethod
	signingKey crypto.PrivateKey
	issuer     string
	audience   string
	validity   time.Duration
	newID      func() (uuid.UUID, error)
}

// NewTokenCodec validates cfg and creates a codec
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if !allowedAlgorithms[cfg.Algorithm] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}
	if cfg.SigningKey == nil {
		return nil, errors.New("signing key is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.Validity <= 0 {
		cfg.Validity = DefaultTokenValidity
	}

	return &TokenCodec{
		method:     jwt.GetSigningMethod(cfg.Algorithm),
		signingKey: cfg.SigningKey,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		validity:   cfg.Validity,
		newID:      uuid.NewRandom,
	}, nil
}

// Algorithm returns the JWS algorithm name
func (c *TokenCodec) Algorithm() string {
	return c.method.Alg()
}

// Validity returns the token lifetime
func (c *TokenCodec) Validity() time.Duration {
	return c.validity
}

// PublicKey returns the public half of the signing key
func (c *TokenCodec) PublicKey() crypto.PublicKey {
	return PublicKeyOf(c.signingKey)
}

// Issue signs a token for subject with the given role. It returns the
// compact token and its lifetime in seconds.
func (c *TokenCodec) Issue(subject uuid.UUID, role Role, now time.Time) (string, int64, error) {
	jti, err := c.newID()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrRandomUnavailable, err)
	}

	issued := now.Truncate(time.Second)
	claims := &Claims{
		Issuer:    c.issuer,
		Subject:   subject.String(),
		Role:      role,
		Audience:  c.audience,
		TokenID:   jti.String(),
		IssuedAt:  jwt.NewNumericDate(issued),
		NotBefore: jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(c.validity)),
	}

	token, err := jwt.NewWithClaims(c.method, claims).SignedString(c.signingKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, int64(c.validity / time.Second), nil
}

// Verify checks token against each key in keys, in order. The first key
// whose signature and claims validate wins. Every failure, whatever the
// cause, is reported as ErrInvalidToken.
func (c *TokenCodec) Verify(token string, keys *KeySet, now time.Time) (*Claims, error) {
	if token == "" || keys == nil {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithAudience(c.audience),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	for _, key := range keys.keys {
		claims := &Claims{}
		_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return key.Key, nil
		})
		if err == nil {
			return claims, nil
		}
	}

	return nil, ErrInvalidToken
}

// DecodeUnverified reads sub, role and jti from token without checking its
// signature or validity window. It is for audit logging only and never
// fails: malformed input yields empty fields.
func (c *TokenCodec) DecodeUnverified(token string) UnverifiedClaims {
	return decodeUnverified(token)
}

func decodeUnverified(token string) (out UnverifiedClaims) {
	defer func() {
		if r := recover(); r != nil {
			out = UnverifiedClaims{}
		}
	}()

	// A missing or unknown alg header is reported after the payload has been
	// decoded, and forged tokens are the ones worth recording.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return UnverifiedClaims{}
	}

	return UnverifiedClaims{
		Subject: claimString(claims["sub"]),
		Role:    claimString(claims["role"]),
		TokenID: claimString(claims["jti"]),
	}
}
