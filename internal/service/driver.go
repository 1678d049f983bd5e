package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Prompt describes what the transport should show after a driver operation.
// When Report is set the quiz is completed and Question is empty.
type Prompt struct {
	SetID    string
	FileName string
	Question Question
	Position int
	Total    int
	Choices  []string
	Hint     []string
	Report   *Report
}

func (p Prompt) Completed() bool {
	return p.Report != nil
}

// AwaitsText reports whether the prompt expects a free-text reply.
func (p Prompt) AwaitsText() bool {
	return !p.Completed() && takesText(p.Question.Type)
}

type Status struct {
	State    QuizState
	SetID    string
	FileName string
	Answered int
	Total    int
	Selected string
}

type DriverOption func(*Driver)

// WithShuffle makes Begin shuffle the question order.
func WithShuffle(enabled bool) DriverOption {
	return func(d *Driver) { d.shuffle = enabled }
}

func WithClock(now func() time.Time) DriverOption {
	return func(d *Driver) { d.now = now }
}

// Driver runs the quiz state machine on top of a SessionStore.
type Driver struct {
	store   *SessionStore
	shuffle bool
	now     func() time.Time
}

func NewDriver(store *SessionStore, opts ...DriverOption) *Driver {
	d := &Driver{
		store: store,
		now:   time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Load stores a freshly parsed question set for the user. An empty set leaves the store untouched.
func (d *Driver) Load(userID int64, fileName string, questions []Question) (QuestionSet, error) {
	if len(questions) == 0 {
		return QuestionSet{}, ErrEmptyResult
	}
	set := QuestionSet{
		ID:        uuid.NewString(),
		FileName:  fileName,
		Questions: questions,
		LoadedAt:  d.now(),
	}
	d.store.Load(userID, set)
	return set, nil
}

// Begin restarts the user's quiz from the first question.
func (d *Driver) Begin(userID int64) (Prompt, error) {
	var prompt Prompt
	err := d.store.Update(userID, func(set *QuestionSet, state *SessionState) error {
		if d.shuffle {
			set.Questions = ShuffleQuestions(set.Questions)
		}
		*state = SessionState{}
		prompt = render(set, state)
		return nil
	})
	if errors.Is(err, ErrSessionMissing) {
		return Prompt{}, ErrNoQuestionSet
	}
	return prompt, err
}

func (d *Driver) Current(userID int64) (Prompt, error) {
	var prompt Prompt
	err := d.store.Update(userID, func(set *QuestionSet, state *SessionState) error {
		prompt = render(set, state)
		return nil
	})
	return prompt, err
}

// SubmitText records a free-text answer for a fill or sort question and advances.
func (d *Driver) SubmitText(userID int64, text string) (Prompt, error) {
	var prompt Prompt
	err := d.store.Update(userID, func(set *QuestionSet, state *SessionState) error {
		q, err := current(set, state)
		if err != nil {
			return err
		}
		if !takesText(q.Type) {
			return ErrNotAwaitingText
		}
		advance(state, text)
		prompt = render(set, state)
		return nil
	})
	return prompt, err
}

// Attach records the chat message that shows the question at position.
// It is a no-op when the quiz has already moved past that position.
func (d *Driver) Attach(userID int64, position, messageID int) error {
	return d.store.Update(userID, func(set *QuestionSet, state *SessionState) error {
		if state.Index+1 == position && state.Index < len(set.Questions) {
			state.MessageID = messageID
		}
		return nil
	})
}

// Select stores a draft choice for a multiple-choice or true/false question.
// The draft is overwritten by later selections until it is confirmed.
func (d *Driver) Select(userID int64, choice string) (string, error) {
	return d.selectChoice(userID, choice, nil)
}

// SelectFrom is Select for a tap on the keyboard of messageID. Taps on any
// message other than the one attached to the current question fail with ErrStalePrompt.
func (d *Driver) SelectFrom(userID int64, messageID int, choice string) (string, error) {
	return d.selectChoice(userID, choice, &messageID)
}

func (d *Driver) selectChoice(userID int64, choice string, messageID *int) (string, error) {
	err := d.store.Update(userID, func(set *QuestionSet, state *SessionState) error {
		q, err := current(set, state)
		if err != nil {
			return err
		}
		if messageID != nil && *messageID != state.MessageID {
			return ErrStalePrompt
		}
		if takesText(q.Type) {
			return ErrWrongQuestionType
		}
		if !contains(Choices(q), choice) {
			return ErrInvalidChoice
		}
		state.Selected = choice
		return nil
	})
	if err != nil {
		return "", err
	}
	return choice, nil
}

// Confirm commits the draft choice as the answer and advances.
func (d *Driver) Confirm(userID int64) (Prompt, error) {
	return d.confirm(userID, nil)
}

// ConfirmFrom is Confirm for the confirm button of messageID.
func (d *Driver) ConfirmFrom(userID int64, messageID int) (Prompt, error) {
	return d.confirm(userID, &messageID)
}

func (d *Driver) confirm(userID int64, messageID *int) (Prompt, error) {
	var prompt Prompt
	err := d.store.Update(userID, func(set *QuestionSet, state *SessionState) error {
		if _, err := current(set, state); err != nil {
			return err
		}
		if messageID != nil && *messageID != state.MessageID {
			return ErrStalePrompt
		}
		if state.Selected == "" {
			return ErrNothingSelected
		}
		advance(state, state.Selected)
		prompt = render(set, state)
		return nil
	})
	return prompt, err
}

func (d *Driver) Status(userID int64) (Status, error) {
	set, state, err := d.store.Get(userID)
	if errors.Is(err, ErrSessionMissing) {
		return Status{State: StateIdle}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{
		State:    state.state(len(set.Questions)),
		SetID:    set.ID,
		FileName: set.FileName,
		Answered: len(state.Answers),
		Total:    len(set.Questions),
		Selected: state.Selected,
	}, nil
}

// Choices lists the choice tokens offered for a question. Text questions have none.
func Choices(q Question) []string {
	switch q.Type {
	case TypeMultipleChoice:
		var letters []string
		for _, opt := range q.Options {
			if letter, ok := OptionLetter(opt); ok && !contains(letters, letter) {
				letters = append(letters, letter)
			}
		}
		return letters
	case TypeTrueFalse:
		return []string{AffirmativeLabel, NegativeLabel}
	default:
		return nil
	}
}

func render(set *QuestionSet, state *SessionState) Prompt {
	total := len(set.Questions)
	if state.Index >= total {
		report := Score(set.Questions, state.Answers)
		return Prompt{SetID: set.ID, FileName: set.FileName, Total: total, Report: &report}
	}

	q := set.Questions[state.Index]
	prompt := Prompt{
		SetID:    set.ID,
		FileName: set.FileName,
		Question: q,
		Position: state.Index + 1,
		Total:    total,
		Choices:  Choices(q),
	}
	if q.Type == TypeSort && len(q.Options) > 0 {
		prompt.Hint = append([]string(nil), q.Options...)
	}
	return prompt
}

func current(set *QuestionSet, state *SessionState) (Question, error) {
	if state.Index >= len(set.Questions) {
		return Question{}, ErrQuizCompleted
	}
	return set.Questions[state.Index], nil
}

func advance(state *SessionState, answer string) {
	state.Answers = append(state.Answers, answer)
	state.Selected = ""
	state.MessageID = 0
	state.Index++
}

func takesText(t QuestionType) bool {
	return t == TypeFill || t == TypeSort
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
