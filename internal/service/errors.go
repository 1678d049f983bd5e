package service

import "errors"

var (
	ErrSessionMissing    = errors.New("no active session")
	ErrNoQuestionSet     = errors.New("no question set loaded")
	ErrEmptyResult       = errors.New("no questions found in document")
	ErrNotAwaitingText   = errors.New("current question does not take a text answer")
	ErrWrongQuestionType = errors.New("current question does not take a choice")
	ErrInvalidChoice     = errors.New("choice is not offered for current question")
	ErrNothingSelected   = errors.New("nothing selected to confirm")
	ErrQuizCompleted     = errors.New("quiz already completed")
	ErrStalePrompt       = errors.New("callback from a question that is no longer current")
)
