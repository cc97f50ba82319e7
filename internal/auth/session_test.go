package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	id  Identity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (Identity, error) { return s.id, s.err }

func TestZeroSessionHasNoUser(t *testing.T) {
	var s Session
	_, ok := s.CurrentUser()
	assert.False(t, ok)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed when there is no session")
	}
	s.End()
}

func TestEndClosesDone(t *testing.T) {
	s := NewSession(Identity{ID: "u1"})
	done := s.Done()

	select {
	case <-done:
		t.Fatal("Done closed while signed in")
	default:
	}

	s.End()
	<-done
	_, ok := s.CurrentUser()
	assert.False(t, ok)
}

func TestBeginEndsPreviousSession(t *testing.T) {
	s := NewSession(Identity{ID: "u1"})
	first := s.Done()

	s.Begin(Identity{ID: "u2"})
	<-first

	id, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "u2", id.ID)
}

func TestLoginKeepsToken(t *testing.T) {
	var s Session
	id, err := s.Login(context.Background(), stubVerifier{id: Identity{ID: "u1", Email: "a@b.c"}}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", id.Token)

	cur, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "u1", cur.ID)
	assert.Equal(t, "tok", cur.Token)
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	s := NewSession(Identity{ID: "u1"})
	_, err := s.Login(context.Background(), stubVerifier{err: errors.New("expired")}, "bad")
	require.Error(t, err)

	cur, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "u1", cur.ID)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc"))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("Bearer"))
	assert.Empty(t, BearerToken(""))
}
