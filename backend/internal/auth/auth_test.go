package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "aurora/backend/pkg/errors"
)

func TestPasswords(t *testing.T) {
	p := NewPasswords(bcrypt.MinCost)

	hash, err := p.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, p.Verify("hunter22", hash))
	assert.False(t, p.Verify("hunter23", hash))
	assert.False(t, p.Verify("hunter22", "not-a-hash"))
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)

	raw, err := tokens.Mint("alice")
	require.NoError(t, err)

	sub, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	sub, err = tokens.Verify("Bearer " + raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestTokens_Rejects(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewTokens("other-secret", time.Hour)
	require.NoError(t, err)

	foreign, err := other.Mint("alice")
	require.NoError(t, err)

	expired, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.Mint("alice")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "alice", Issuer: issuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":    "",
		"garbage":  "abc.def.ghi",
		"foreign":  foreign,
		"expired":  stale,
		"unsigned": unsigned,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(raw)
			assert.Equal(t, apperrors.ErrorTypeAuth, apperrors.TypeOf(err))
		})
	}
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	assert.Equal(t, apperrors.ErrorTypeConfig, apperrors.TypeOf(err))
}
