package session

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// Store holds the current bearer token.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ordering: Set and Clear affect requests built after they return; requests
//   already in flight keep the header they were built with.
type Store struct {
	mu       sync.RWMutex
	token    string
	identity *Identity
	names    ClaimNames
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore(names ClaimNames) *Store {
	return &Store{names: names, now: time.Now}
}

// Set replaces the token. A JWT has its claims decoded into the Identity;
// any other bearer token is stored as is with a nil Identity. An empty token
// is rejected and the previous token is kept.
func (s *Store) Set(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	id, err := ParseIdentity(token, s.names)
	switch {
	case errors.Is(err, ErrTokenMalformed):
		id = nil
	case err != nil:
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.identity = id
	return id, nil
}

// Clear removes the token.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.identity = nil
}

// Token returns the raw token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns the identity decoded from the current token, or nil.
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Authorization returns the Authorization header value for the next request.
// It returns ErrNoToken when signed out and ErrTokenExpired once exp has passed.
func (s *Store) Authorization() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", ErrNoToken
	}
	if s.identity != nil && s.identity.IsExpired(s.now()) {
		return "", ErrTokenExpired
	}
	return "Bearer " + s.token, nil
}

// persisted is the serialized form of the session slice.
type persisted struct {
	Token string `json:"token,omitempty"`
}

// MarshalJSON encodes the session slice for the persisted state store.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(persisted{Token: s.Token()})
}

// Restore loads a session slice written by MarshalJSON. An empty slice clears
// the store.
func (s *Store) Restore(raw json.RawMessage) error {
	var p persisted
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
	}
	if p.Token == "" {
		s.Clear()
		return nil
	}
	_, err := s.Set(p.Token)
	return err
}
