package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communityeats/internal/domain/identity"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func baseClaims(subject string) Claims {
	return Claims{
		Email: subject + "@example.com",
		Name:  "Test User",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "communityeats-id",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier(testSecret, "communityeats-id")

	id, err := v.Verify(signToken(t, testSecret, baseClaims("user-1")))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.Subject)
	assert.Equal(t, "user-1@example.com", id.Email)
	assert.Equal(t, "Test User", id.DisplayName)
	assert.False(t, id.IsAdmin())
}

func TestVerifierRejections(t *testing.T) {
	v := NewVerifier(testSecret, "communityeats-id")

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrTokenRequired)

	_, err = v.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = v.Verify(signToken(t, "wrong-secret", baseClaims("user-1")))
	assert.ErrorIs(t, err, ErrTokenInvalid)

	wrongIssuer := baseClaims("user-1")
	wrongIssuer.Issuer = "someone-else"
	_, err = v.Verify(signToken(t, testSecret, wrongIssuer))
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired := baseClaims("user-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	_, err = v.Verify(signToken(t, testSecret, expired))
	assert.ErrorIs(t, err, ErrTokenInvalid)

	noSubject := baseClaims("")
	_, err = v.Verify(signToken(t, testSecret, noSubject))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifierSkipsIssuerCheckWhenUnset(t *testing.T) {
	v := NewVerifier(testSecret, "")
	_, err := v.Verify(signToken(t, testSecret, baseClaims("user-1")))
	assert.NoError(t, err)
}

func TestAdminGateGrants(t *testing.T) {
	v := NewVerifier(testSecret, "")
	gate := NewAdminGate(v, []string{"Mod@Example.com"})

	assert.True(t, gate.Grants(identity.Identity{Subject: "a", Admin: true}), "admin claim")
	assert.True(t, gate.Grants(identity.Identity{Subject: "a", Role: "Admin"}), "admin role, case-insensitive")
	assert.True(t, gate.Grants(identity.Identity{Subject: "a", Email: "mod@example.com"}), "allow-listed email")
	assert.False(t, gate.Grants(identity.Identity{Subject: "a", Email: "user@example.com"}))
	assert.False(t, gate.Grants(identity.Identity{Subject: "a"}))
}

func TestAdminGateAuthorize(t *testing.T) {
	v := NewVerifier(testSecret, "")
	gate := NewAdminGate(v, []string{"user-2@example.com"})

	_, err := gate.Authorize("")
	assert.ErrorIs(t, err, ErrTokenRequired)

	_, err = gate.Authorize(signToken(t, testSecret, baseClaims("user-1")))
	assert.ErrorIs(t, err, ErrNotAdmin)

	id, err := gate.Authorize(signToken(t, testSecret, baseClaims("user-2")))
	require.NoError(t, err)
	assert.Equal(t, "user-2", id.Subject)

	adminClaims := baseClaims("user-3")
	adminClaims.Admin = true
	id, err = gate.Authorize(signToken(t, testSecret, adminClaims))
	require.NoError(t, err)
	assert.Equal(t, "user-3", id.Subject)
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", ExtractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", ExtractBearerToken("bearer abc"))
	assert.Empty(t, ExtractBearerToken(""))
	assert.Empty(t, ExtractBearerToken("Basic abc"))
	assert.Empty(t, ExtractBearerToken("Bearerabc"))
}
