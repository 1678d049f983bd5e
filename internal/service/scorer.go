package service

import (
	"math"
	"strings"
)

// MaxScore is the top of the grading scale.
const MaxScore = 10.0

type ItemResult struct {
	QuestionID int
	Expected   string
	Actual     string
	IsCorrect  bool
}

type Report struct {
	Correct int
	Total   int
	Score   float64
	Items   []ItemResult
}

// Score compares recorded answers against each question's answer key.
func Score(questions []Question, answers []string) Report {
	report := Report{
		Total: len(questions),
		Items: make([]ItemResult, 0, len(questions)),
	}

	for i, q := range questions {
		actual := ""
		if i < len(answers) {
			actual = answers[i]
		}
		expected := strings.Join(q.Correct, ",")
		ok := Normalize(actual) == Normalize(expected)
		if ok {
			report.Correct++
		}
		report.Items = append(report.Items, ItemResult{
			QuestionID: q.ID,
			Expected:   expected,
			Actual:     actual,
			IsCorrect:  ok,
		})
	}

	if report.Total > 0 {
		raw := float64(report.Correct) / float64(report.Total) * MaxScore
		report.Score = math.Round(raw*100) / 100
	}
	return report
}
