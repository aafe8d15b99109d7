package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/models"
)

func TestTokens_IssueAndParse(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	signed, err := tokens.Issue(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	caller, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, models.Caller{ID: "u1", Username: "alice"}, caller)
}

func TestTokens_RejectsExpired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	tokens.now = func() time.Time { return fixedNow }
	signed, err := tokens.Issue(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	tokens.now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	_, err = tokens.Parse(signed)
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))
	assert.EqualError(t, err, "token expired")
}

func TestTokens_RejectsForeignSignature(t *testing.T) {
	signed, err := NewTokens("other", time.Hour).Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).Parse(signed)
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))
}

func TestTokens_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{Username: "alice", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).Parse(signed)
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))
}

func TestTokens_RequiresSubject(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "alice"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).Parse(signed)
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))
}
