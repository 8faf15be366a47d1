package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserRoundTrip(t *testing.T) {
	p := NewParser("test-secret")
	token, err := p.Sign(Actor{UserID: "u-42", Role: "reception"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	actor, err := p.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{UserID: "u-42", Role: "reception"}, actor)
}

func TestParserRejectsBadTokens(t *testing.T) {
	p := NewParser("test-secret")

	other, err := NewParser("other-secret").Sign(Actor{UserID: "u-1"}, jwt.RegisteredClaims{})
	require.NoError(t, err)
	_, err = p.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := p.Sign(Actor{UserID: "u-1"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = p.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := p.Sign(Actor{}, jwt.RegisteredClaims{})
	require.NoError(t, err)
	_, err = p.Parse(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActorFromDefaultsToAnonymous(t *testing.T) {
	assert.Equal(t, Anonymous, ActorFrom(context.Background()))

	ctx := WithActor(context.Background(), Actor{UserID: "u-7", Role: "doctor"})
	assert.Equal(t, "u-7", ActorFrom(ctx).UserID)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	_, ok = BearerToken("Basic Zm9v")
	assert.False(t, ok)
	_, ok = BearerToken("bearer   ")
	assert.False(t, ok)
}
