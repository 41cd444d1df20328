package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkboard/delegation-engine/tasks"
)

func TestTokenRoundTrip(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)

	session := tasks.Session{
		Username:    "alice",
		DisplayName: "Alice Wong",
		Email:       "alice@example.com",
		Department:  "Ops",
		Role:        tasks.RoleAdmin,
	}

	token, err := ti.Issue(session)
	require.NoError(t, err)

	got, err := ti.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, session, got)
}

func TestTokenExpiry(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Minute)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return base }

	token, err := ti.Issue(tasks.Session{Username: "alice", Role: tasks.RoleUser})
	require.NoError(t, err)

	_, err = ti.Verify(token)
	assert.NoError(t, err)

	ti.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = ti.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Hour)
	verifier := NewTokenIssuer("secret-b", time.Hour)

	token, err := issuer.Issue(tasks.Session{Username: "alice", Role: tasks.RoleUser})
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)
	_, err := ti.Verify("not.a.token")
	assert.Error(t, err)
}
