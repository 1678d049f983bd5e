package service

import (
	"errors"
	"testing"
)

func TestSessionStore_GetMissing(t *testing.T) {
	s := NewSessionStore()
	if _, _, err := s.Get(1); !errors.Is(err, ErrSessionMissing) {
		t.Fatalf("expected ErrSessionMissing, got %v", err)
	}
	if err := s.Update(1, func(*QuestionSet, *SessionState) error { return nil }); !errors.Is(err, ErrSessionMissing) {
		t.Fatalf("expected ErrSessionMissing from Update, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestSessionStore_LoadResetsState(t *testing.T) {
	s := NewSessionStore()
	s.Load(1, QuestionSet{ID: "first", Questions: []Question{{ID: 1}}})

	err := s.Update(1, func(_ *QuestionSet, state *SessionState) error {
		state.Index = 1
		state.Answers = append(state.Answers, "x")
		state.Selected = "A"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	s.Load(1, QuestionSet{ID: "second", Questions: []Question{{ID: 1}, {ID: 2}}})
	set, state, err := s.Get(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if set.ID != "second" {
		t.Errorf("expected second set, got %s", set.ID)
	}
	if state.Index != 0 || len(state.Answers) != 0 || state.Selected != "" {
		t.Errorf("state not reset: %+v", state)
	}
}

func TestSessionStore_UpdateErrorIsReturned(t *testing.T) {
	s := NewSessionStore()
	s.Load(1, QuestionSet{ID: "set"})

	boom := errors.New("boom")
	if err := s.Update(1, func(*QuestionSet, *SessionState) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestSessionStore_GetReturnsCopy(t *testing.T) {
	s := NewSessionStore()
	s.Load(1, QuestionSet{ID: "set"})
	_ = s.Update(1, func(_ *QuestionSet, state *SessionState) error {
		state.Answers = []string{"a"}
		return nil
	})

	_, state, _ := s.Get(1)
	state.Answers[0] = "changed"

	_, again, _ := s.Get(1)
	if again.Answers[0] != "a" {
		t.Fatalf("stored answers mutated through copy: %q", again.Answers)
	}
}

func TestSessionStore_UsersIsolated(t *testing.T) {
	s := NewSessionStore()
	s.Load(1, QuestionSet{ID: "one"})
	s.Load(2, QuestionSet{ID: "two"})

	_ = s.Update(1, func(_ *QuestionSet, state *SessionState) error {
		state.Index = 5
		return nil
	})

	_, state, _ := s.Get(2)
	if state.Index != 0 {
		t.Fatalf("user 2 affected by user 1 update")
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 users, got %d", s.Len())
	}
}
