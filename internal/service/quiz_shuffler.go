package service

import (
	"math/rand"
	"time"
)

// ShuffleQuestions returns the questions in random order. The input slice is not modified
// and question IDs keep their document numbering.
func ShuffleQuestions(questions []Question) []Question {
	shuffled := make([]Question, len(questions))
	copy(shuffled, questions)

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return shuffled
}
