package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdeck-dev/appdeck/internal/cli/client"
)

func testUser() *client.User {
	return &client.User{
		ID:        "01HZX3J6Q8C2",
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Role:      client.RoleAdmin,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		session Session
	}{
		{name: "anonymous", session: Session{}},
		{name: "authenticated", session: Session{User: testUser(), Token: "jwt-token", IsAuthenticated: true}},
		{name: "authenticated without profile", session: Session{Token: "jwt-token", IsAuthenticated: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.session)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.session, got)
		})
	}
}

func TestRestore_FlagWithoutTokenIsAnonymous(t *testing.T) {
	got := Restore(PersistedSession{IsAuthenticated: true, User: testUser()})
	assert.True(t, got.Anonymous())
	assert.Nil(t, got.User)
}

func TestPersist_CopiesUser(t *testing.T) {
	u := testUser()
	p := Persist(Session{User: u, Token: "t", IsAuthenticated: true})
	u.Name = "changed"
	assert.Equal(t, "Ada Lovelace", p.User.Name)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestSaveLoadClearSession(t *testing.T) {
	storage := NewMemoryStorage()

	s, err := LoadSession(storage)
	require.NoError(t, err)
	assert.True(t, s.Anonymous())

	want := Session{User: testUser(), Token: "jwt-token", IsAuthenticated: true}
	require.NoError(t, SaveSession(storage, want))

	got, err := LoadSession(storage)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Saving an anonymous session removes the key
	require.NoError(t, SaveSession(storage, Session{}))
	_, err = storage.Load(SessionKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SaveSession(storage, want))
	require.NoError(t, ClearSession(storage))
	_, err = storage.Load(SessionKey)
	assert.ErrorIs(t, err, ErrNotFound)
}
