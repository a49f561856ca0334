package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"manager":  RoleManager,
		"Director": RoleDirector,
		" vp ":     RoleVP,
		"ADMIN":    RoleAdmin,
		"sales":    RoleOther,
		"":         RoleOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseRole(in), in)
	}
}

func TestActorIsAdmin(t *testing.T) {
	assert.True(t, Actor{ID: "u1", Role: RoleAdmin}.IsAdmin())
	assert.True(t, Actor{ID: "u1", Role: RoleVP, Admin: true}.IsAdmin())
	assert.False(t, Actor{ID: "u1", Role: RoleManager}.IsAdmin())
}

func TestActorFromContext(t *testing.T) {
	_, err := ActorFromContext(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthenticated))

	ctx := WithActor(context.Background(), Actor{ID: "u1", Role: RoleManager})
	actor, err := ActorFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, RoleManager, actor.Role)
}

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret", "sow-idp")

	token, err := v.Issue(Actor{ID: "user-7", Role: RoleDirector}, time.Minute)
	require.NoError(t, err)

	actor, err := v.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", actor.ID)
	assert.Equal(t, RoleDirector, actor.Role)
	assert.False(t, actor.IsAdmin())
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("secret", "sow-idp")

	_, err := v.Verify("")
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthenticated))

	other, err := NewVerifier("other-secret", "sow-idp").Issue(Actor{ID: "u", Role: RoleVP}, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(other)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthenticated))

	expired, err := v.Issue(Actor{ID: "u", Role: RoleVP}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthenticated))

	wrongIssuer, err := NewVerifier("secret", "elsewhere").Issue(Actor{ID: "u", Role: RoleVP}, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.Error(t, err)
}
