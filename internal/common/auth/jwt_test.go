// internal/common/auth/jwt_test.go
package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_RoundTrip(t *testing.T) {
	v := NewValidator("test-secret")

	token, err := v.Sign("user-123", RoleUser, time.Minute)
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.False(t, claims.IsObserver())
}

func TestValidator_ObserverRoles(t *testing.T) {
	v := NewValidator("test-secret")

	for _, role := range []string{RoleObserver, RoleAdmin} {
		token, err := v.Sign("admin-1", role, time.Minute)
		require.NoError(t, err)

		claims, err := v.Validate(token)
		require.NoError(t, err)
		assert.True(t, claims.IsObserver())
	}
}

func TestValidator_RejectsWrongSecret(t *testing.T) {
	token, err := NewValidator("other-secret").Sign("user-123", RoleUser, time.Minute)
	require.NoError(t, err)

	_, err = NewValidator("test-secret").Validate(token)
	assert.Error(t, err)
}

func TestValidator_RejectsExpired(t *testing.T) {
	v := NewValidator("test-secret")

	token, err := v.Sign("user-123", RoleUser, -time.Minute)
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.Error(t, err)
}

func TestValidator_RejectsMissingUserID(t *testing.T) {
	v := NewValidator("test-secret")

	token, err := v.Sign("", RoleUser, time.Minute)
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.Error(t, err)
}

func TestValidator_RejectsGarbage(t *testing.T) {
	_, err := NewValidator("test-secret").Validate("not-a-token")
	assert.Error(t, err)
}
