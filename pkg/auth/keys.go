package auth

import (
	"crypto"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
)

// VerificationKey is a labelled public key trusted for token verification
type VerificationKey struct {
	Label string
	Key   crypto.PublicKey
}

// KeySet is an immutable, ordered list of verification keys.
// Order is preference order: the current key first, then retired keys.
type KeySet struct {
	keys []VerificationKey
}

// NewKeySet builds a key set. Labels must be unique and non-empty. An empty
// set trusts no key, so every token fails verification against it.
func NewKeySet(keys ...VerificationKey) (*KeySet, error) {
	seen := make(map[string]bool, len(keys))
	copied := make([]VerificationKey, 0, len(keys))
	for i, k := range keys {
		if k.Label == "" {
			return nil, fmt.Errorf("key %d has no label", i)
		}
		if k.Key == nil {
			return nil, fmt.Errorf("key %q is nil", k.Label)
		}
		if seen[k.Label] {
			return nil, fmt.Errorf("duplicate key label %q", k.Label)
		}
		seen[k.Label] = true
		copied = append(copied, k)
	}

	return &KeySet{keys: copied}, nil
}

// Keys returns a copy of the keys in preference order
func (s *KeySet) Keys() []VerificationKey {
	out := make([]VerificationKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Labels returns the key labels in preference order
func (s *KeySet) Labels() []string {
	labels := make([]string, len(s.keys))
	for i, k := range s.keys {
		labels[i] = k.Label
	}
	return labels
}

// Len returns the number of keys
func (s *KeySet) Len() int {
	return len(s.keys)
}

// Contains reports whether pub is one of the set's keys
func (s *KeySet) Contains(pub crypto.PublicKey) bool {
	for _, k := range s.keys {
		if eq, ok := k.Key.(interface{ Equal(crypto.PublicKey) bool }); ok && eq.Equal(pub) {
			return true
		}
	}
	return false
}

// KeyRing publishes the active key set. Readers never block; a reload
// swaps the whole set at once.
type KeyRing struct {
	current atomic.Pointer[KeySet]
}

// NewKeyRing creates a ring holding set
func NewKeyRing(set *KeySet) *KeyRing {
	r := &KeyRing{}
	r.current.Store(set)
	return r
}

// Current returns the active key set
func (r *KeyRing) Current() *KeySet {
	return r.current.Load()
}

// Replace swaps in a new key set. A nil set is ignored.
func (r *KeyRing) Replace(set *KeySet) {
	if set == nil {
		return
	}
	r.current.Store(set)
}

// keyFamily returns the key family for a JWS algorithm name
func keyFamily(alg string) (string, error) {
	switch {
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"):
		return "rsa", nil
	case strings.HasPrefix(alg, "ES"):
		return "ec", nil
	case alg == "EdDSA":
		return "ed25519", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
}

// ParsePrivateKeyPEM parses a PEM encoded signing key for alg
func ParsePrivateKeyPEM(alg string, data []byte) (crypto.PrivateKey, error) {
	family, err := keyFamily(alg)
	if err != nil {
		return nil, err
	}

	var key crypto.PrivateKey
	switch family {
	case "rsa":
		key, err = jwt.ParseRSAPrivateKeyFromPEM(data)
	case "ec":
		key, err = jwt.ParseECPrivateKeyFromPEM(data)
	default:
		key, err = jwt.ParseEdPrivateKeyFromPEM(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s private key: %w", family, err)
	}
	return key, nil
}

// ParsePublicKeyPEM parses a PEM encoded verification key for alg
func ParsePublicKeyPEM(alg string, data []byte) (crypto.PublicKey, error) {
	family, err := keyFamily(alg)
	if err != nil {
		return nil, err
	}

	var key crypto.PublicKey
	switch family {
	case "rsa":
		key, err = jwt.ParseRSAPublicKeyFromPEM(data)
	case "ec":
		key, err = jwt.ParseECPublicKeyFromPEM(data)
	default:
		key, err = jwt.ParseEdPublicKeyFromPEM(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s public key: %w", family, err)
	}
	return key, nil
}

// LoadPrivateKeyFile reads and parses a PEM signing key
func LoadPrivateKeyFile(alg, path string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return ParsePrivateKeyPEM(alg, data)
}

// LoadPublicKeyFile reads and parses a PEM verification key
func LoadPublicKeyFile(alg, path string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read verification key: %w", err)
	}
	return ParsePublicKeyPEM(alg, data)
}

// PublicKeyOf returns the public half of a signing key, or nil
func PublicKeyOf(key crypto.PrivateKey) crypto.PublicKey {
	if signer, ok := key.(crypto.Signer); ok {
		return signer.Public()
	}
	return nil
}
