package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair_SignsAndVerifies(t *testing.T) {
	for _, alg := range []string{"RS256", "PS384", "ES256", "ES384", "ES512", "EdDSA"} {
		t.Run(alg, func(t *testing.T) {
			privPEM, pubPEM, err := GenerateKeyPair(alg, MinRSABits)
			require.NoError(t, err)
			assert.Contains(t, string(privPEM), "BEGIN PRIVATE KEY")
			assert.Contains(t, string(pubPEM), "BEGIN PUBLIC KEY")

			priv, err := ParsePrivateKeyPEM(alg, privPEM)
			require.NoError(t, err)
			pub, err := ParsePublicKeyPEM(alg, pubPEM)
			require.NoError(t, err)

			codec, err := NewTokenCodec(TokenCodecConfig{
				Algorithm:  alg,
				SigningKey: priv,
				Issuer:     "iam-service",
				Audience:   "iam-service",
			})
			require.NoError(t, err)

			set, err := NewKeySet(VerificationKey{Label: "generated", Key: pub})
			require.NoError(t, err)
			assert.True(t, set.Contains(codec.PublicKey()))

			now := time.Now()
			token, _, err := codec.Issue(uuid.New(), RoleUser, now)
			require.NoError(t, err)
			_, err = codec.Verify(token, set, now)
			assert.NoError(t, err)
		})
	}
}

func TestGenerateKeyPair_Errors(t *testing.T) {
	tests := []struct {
		name string
		alg  string
		bits int
	}{
		{"hmac", "HS256", 0},
		{"none", "none", 0},
		{"weak rsa", "RS256", 1024},
		{"unknown curve", "ES999", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := GenerateKeyPair(tt.alg, tt.bits)
			assert.Error(t, err)
		})
	}
}
