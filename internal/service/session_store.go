package service

import (
	"sync"
)

type sessionEntry struct {
	mu    sync.Mutex
	set   *QuestionSet
	state *SessionState
}

// SessionStore keeps the latest question set and quiz state per user.
// Operations for one user are serialized; different users do not block each other.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[int64]*sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		entries: make(map[int64]*sessionEntry),
	}
}

func (s *SessionStore) entry(userID int64) *sessionEntry {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		return e
	}
	e = &sessionEntry{}
	s.entries[userID] = e
	return e
}

// Load replaces the user's question set and resets their state to the first question.
func (s *SessionStore) Load(userID int64, set QuestionSet) {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set = &set
	e.state = &SessionState{}
}

// Get returns copies of the user's question set and state.
func (s *SessionStore) Get(userID int64) (QuestionSet, SessionState, error) {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return QuestionSet{}, SessionState{}, ErrSessionMissing
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set == nil || e.state == nil {
		return QuestionSet{}, SessionState{}, ErrSessionMissing
	}
	state := *e.state
	state.Answers = append([]string(nil), e.state.Answers...)
	return *e.set, state, nil
}

// Update runs fn while holding the user's lock. Changes fn makes to the state are kept.
func (s *SessionStore) Update(userID int64, fn func(set *QuestionSet, state *SessionState) error) error {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionMissing
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set == nil || e.state == nil {
		return ErrSessionMissing
	}
	return fn(e.set, e.state)
}

// Len reports how many users have a loaded question set.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		e.mu.Lock()
		if e.set != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
