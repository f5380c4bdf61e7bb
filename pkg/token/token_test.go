package token

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	generator := NewJwtGenerator("test-secret", "trustcore", "trustcore")

	value, err := generator.GenerateToken("user-123", DefaultAccessExpiry, map[string]interface{}{
		"name": "Admin",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, value.Token)
	assert.NotEmpty(t, value.JTI)

	parsed, err := generator.ParseToken(value.Token)
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	subject, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "user-123", subject)
	assert.Equal(t, value.JTI, claims["jti"])
}

func TestParseTokenWrongSecret(t *testing.T) {
	generator := NewJwtGenerator("test-secret", "trustcore", "trustcore")
	other := NewJwtGenerator("other-secret", "trustcore", "trustcore")

	value, err := generator.GenerateToken("user-123", DefaultAccessExpiry, nil)
	require.NoError(t, err)

	_, err = other.ParseToken(value.Token)
	assert.Error(t, err)
}

func TestGenerateTokensIssuesFreshJTI(t *testing.T) {
	svc := NewService(NewJwtGenerator("test-secret", "trustcore", "trustcore"))

	first, err := svc.GenerateTokens("user-123", nil)
	require.NoError(t, err)
	second, err := svc.GenerateTokens("user-123", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.Access.JTI, second.Access.JTI)
	assert.NotEqual(t, first.Access.JTI, first.Refresh.JTI)
}
