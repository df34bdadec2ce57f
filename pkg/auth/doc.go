// Package auth provides credential hashing, bearer token issuance and
// verification, and the access decisions used by the IAM service.
//
// # Overview
//
// The package is free of HTTP concerns. Handlers and middleware in other
// packages translate its sentinel errors into responses.
//
// # Key Components
//
// Password hashing: bcrypt with a configurable cost
//
//	hasher := auth.NewPasswordHasher(bcrypt.DefaultCost)
//	hash, err := hasher.Hash("xF0r456@~cwT")
//	ok := hasher.Verify("xF0r456@~cwT", hash)
//
// Tokens: signed JWTs carrying iss, sub, role, aud, jti, iat, nbf and exp
//
//	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{
//		Algorithm:  "RS256",
//		SigningKey: privateKey,
//		Issuer:     "iam-service",
//		Audience:   "iam-service",
//		Validity:   time.Hour,
//	})
//	token, expiresIn, err := codec.Issue(userID, auth.RoleUser, time.Now())
//
// Key rotation: verification walks an ordered key set, newest first
//
//	ring := auth.NewKeyRing(keySet)
//	claims, err := codec.Verify(token, ring.Current(), time.Now())
//
// Access control: a user may act on their own record, an admin on any
//
//	if auth.AuthorizeSelfOrAdmin(identity, targetID) == auth.Deny {
//		return auth.ErrForbidden
//	}
//
// # Errors
//
// Verification failures are reported as ErrInvalidToken without detail so
// that callers cannot distinguish an expired token from a forged one.
package auth
