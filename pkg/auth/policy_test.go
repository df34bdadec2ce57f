package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuthorizeSelfOrAdmin(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	tests := []struct {
		name    string
		current Identity
		target  uuid.UUID
		want    Decision
	}{
		{"user reads self", Identity{ID: alice, Role: RoleUser}, alice, Allow},
		{"user reads other", Identity{ID: alice, Role: RoleUser}, bob, Deny},
		{"admin reads self", Identity{ID: alice, Role: RoleAdmin}, alice, Allow},
		{"admin reads other", Identity{ID: alice, Role: RoleAdmin}, bob, Allow},
		{"unknown role reads self", Identity{ID: alice, Role: "auditor"}, alice, Deny},
		{"empty role reads self", Identity{ID: alice}, alice, Deny},
		{"role is case sensitive", Identity{ID: alice, Role: "Admin"}, bob, Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AuthorizeSelfOrAdmin(tt.current, tt.target))
		})
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	assert.True(t, Identity{Role: RoleAdmin}.IsAdmin())
	assert.False(t, Identity{Role: RoleUser}.IsAdmin())
}
