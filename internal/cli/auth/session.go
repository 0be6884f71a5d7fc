package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/appdeck-dev/appdeck/internal/cli/client"
)

// SessionKey is the durable key the session is persisted under
const SessionKey = "auth-storage"

// Session is the identity state of the client: either anonymous (zero
// value) or authenticated with a user and token.
type Session struct {
	User            *client.User
	Token           string
	IsAuthenticated bool
}

// Anonymous reports whether s carries no identity
func (s Session) Anonymous() bool {
	return !s.IsAuthenticated
}

// PersistedSession is the on-disk shape of a Session
type PersistedSession struct {
	Token           string       `json:"token"`
	User            *client.User `json:"user,omitempty"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

// Persist maps a Session to its persisted shape
func Persist(s Session) PersistedSession {
	p := PersistedSession{
		Token:           s.Token,
		IsAuthenticated: s.IsAuthenticated,
	}
	if s.User != nil {
		u := *s.User
		p.User = &u
	}
	return p
}

// Restore maps a persisted shape back to a Session. A flag without a token
// cannot authenticate a request, so such a record restores as anonymous.
func Restore(p PersistedSession) Session {
	if !p.IsAuthenticated || p.Token == "" {
		return Session{}
	}
	s := Session{Token: p.Token, IsAuthenticated: true}
	if p.User != nil {
		u := *p.User
		s.User = &u
	}
	return s
}

// Encode serializes the persisted subset of s
func Encode(s Session) ([]byte, error) {
	data, err := json.Marshal(Persist(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

// Decode parses data written by Encode
func Decode(data []byte) (Session, error) {
	var p PersistedSession
	if err := json.Unmarshal(data, &p); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return Restore(p), nil
}

// SaveSession writes s to storage, deleting the key for anonymous sessions
func SaveSession(storage Storage, s Session) error {
	if s.Anonymous() {
		return storage.Delete(SessionKey)
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	return storage.Save(SessionKey, data)
}

// LoadSession reads the persisted session; a missing key is anonymous
func LoadSession(storage Storage) (Session, error) {
	data, err := storage.Load(SessionKey)
	if errors.Is(err, ErrNotFound) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}
	return Decode(data)
}

// ClearSession removes the persisted session
func ClearSession(storage Storage) error {
	return storage.Delete(SessionKey)
}
