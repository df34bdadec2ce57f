package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when an email/password pair does not match
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated is returned when no bearer credential was presented
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidToken is returned for every token verification failure
	ErrInvalidToken = errors.New("invalid token")

	// ErrForbidden is returned when the access policy denies a request
	ErrForbidden = errors.New("forbidden")

	// ErrRandomUnavailable is returned when a token identifier cannot be generated
	ErrRandomUnavailable = errors.New("random source unavailable")

	// ErrUnsupportedAlgorithm is returned for signing algorithms outside the asymmetric set
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)
