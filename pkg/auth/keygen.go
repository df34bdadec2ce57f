package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// MinRSABits is the smallest RSA modulus GenerateKeyPair accepts
const MinRSABits = 2048

// GenerateKeyPair creates a signing key for alg and returns it as PKCS#8
// PEM together with its PKIX PEM public key. rsaBits only applies to the
// RS and PS families.
func GenerateKeyPair(alg string, rsaBits int) (privatePEM, publicPEM []byte, err error) {
	family, err := keyFamily(alg)
	if err != nil {
		return nil, nil, err
	}

	var key crypto.Signer
	switch family {
	case "rsa":
		if rsaBits < MinRSABits {
			return nil, nil, fmt.Errorf("RSA keys must be at least %d bits", MinRSABits)
		}
		key, err = rsa.GenerateKey(rand.Reader, rsaBits)
	case "ec":
		curve, cerr := curveFor(alg)
		if cerr != nil {
			return nil, nil, cerr
		}
		key, err = ecdsa.GenerateKey(curve, rand.Reader)
	default:
		_, key, err = ed25519.GenerateKey(rand.Reader)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate %s key: %w", family, err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}

func curveFor(alg string) (elliptic.Curve, error) {
	switch alg {
	case "ES256":
		return elliptic.P256(), nil
	case "ES384":
		return elliptic.P384(), nil
	case "ES512":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
}
