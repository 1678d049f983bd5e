package service

import "time"

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeFill           QuestionType = "fill"
	TypeSort           QuestionType = "sort"
)

// Labels used as choice tokens for true/false questions.
const (
	AffirmativeLabel = "Đúng"
	NegativeLabel    = "Sai"
)

type Question struct {
	ID      int
	Type    QuestionType
	Text    string
	Options []string
	Correct []string
	// Image is the first picture embedded in the question's paragraphs, if any.
	Image *QuestionImage
}

type QuestionImage struct {
	Name string
	Data []byte
}

// QuestionSet is the parsed content of the last document a user uploaded.
type QuestionSet struct {
	ID        string
	FileName  string
	Questions []Question
	LoadedAt  time.Time
}

type SessionState struct {
	Index    int
	Answers  []string
	Selected string
	// MessageID identifies the chat message showing the current question; 0 until attached.
	MessageID int
}

type QuizState string

const (
	StateIdle       QuizState = "idle"
	StateInProgress QuizState = "in_progress"
	StateCompleted  QuizState = "completed"
)

func (s SessionState) state(total int) QuizState {
	if s.Index >= total {
		return StateCompleted
	}
	return StateInProgress
}
