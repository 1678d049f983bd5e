package service

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PoluyanbIch/DocxQuizBot/internal/docx"
)

var (
	questionStartRe = regexp.MustCompile(`(?i)^(?:câu|cau|question|q)\s*[.:#\-]?\s*\d+`)
	optionRe        = regexp.MustCompile(`^[(\[]?([A-E])\s*[.)\]:\-]\s*\S`)
	answerKeyRe     = regexp.MustCompile(`(?i)đáp án đúng|dap an dung|correct answer`)
	answerTokenRe   = regexp.MustCompile(`[A-E]+|\d+|[\p{L}\p{M}\s-]+`)
)

// ClassificationRule maps a predicate over a flushed block to a question type.
// Rules are evaluated in order and the first match wins.
type ClassificationRule struct {
	Name  string
	Type  QuestionType
	Match func(options []string, loweredText string) bool
}

var (
	affirmativeWords = []string{"đúng", "true"}
	negativeWords    = []string{"sai", "false"}
	sortWords        = []string{"sắp xếp", "sap xep", "kéo thả", "thứ tự", "sort", "arrange"}
	blankMarkers     = []string{"...", "…", "___", "điền"}
)

var ClassificationRules = []ClassificationRule{
	{
		Name: "options",
		Type: TypeMultipleChoice,
		Match: func(options []string, _ string) bool {
			return len(options) > 0
		},
	},
	{
		Name: "true_false",
		Type: TypeTrueFalse,
		Match: func(_ []string, text string) bool {
			return containsAny(text, affirmativeWords) && containsAny(text, negativeWords)
		},
	},
	{
		Name: "sort",
		Type: TypeSort,
		Match: func(_ []string, text string) bool {
			return containsAny(text, sortWords)
		},
	},
	{
		Name: "blank",
		Type: TypeFill,
		Match: func(_ []string, text string) bool {
			return containsAny(text, blankMarkers)
		},
	},
	{
		Name: "default",
		Type: TypeFill,
		Match: func([]string, string) bool {
			return true
		},
	},
}

// Classify returns the type of the first rule that matches.
func Classify(options []string, text string) QuestionType {
	lowered := strings.ToLower(text)
	for _, rule := range ClassificationRules {
		if rule.Match(options, lowered) {
			return rule.Type
		}
	}
	return TypeFill
}

type questionBlock struct {
	lines     []string
	options   []string
	answerKey string
	hasKey    bool
	image     *QuestionImage
}

// ParseQuestions splits document paragraphs into question blocks and types them.
func ParseQuestions(paragraphs []string) []Question {
	converted := make([]docx.Paragraph, 0, len(paragraphs))
	for _, p := range paragraphs {
		converted = append(converted, docx.Paragraph{Text: p})
	}
	return parseParagraphs(converted)
}

// parseParagraphs is ParseQuestions over paragraphs that may carry images.
// A block keeps the first image found in any of its paragraphs.
func parseParagraphs(paragraphs []docx.Paragraph) []Question {
	var (
		questions []Question
		block     *questionBlock
	)

	flush := func() {
		if block == nil {
			return
		}
		text := strings.Join(block.lines, "\n")
		questions = append(questions, Question{
			ID:      len(questions) + 1,
			Type:    Classify(block.options, text),
			Text:    text,
			Options: block.options,
			Correct: extractCorrect(block.answerKey, block.hasKey),
			Image:   block.image,
		})
		block = nil
	}

	for _, p := range paragraphs {
		line := strings.TrimSpace(p.Text)
		started := questionStartRe.MatchString(line)

		if started {
			flush()
			block = &questionBlock{lines: []string{line}}
		}
		if block == nil {
			continue // header noise before the first question
		}

		if block.image == nil && len(p.Images) > 0 {
			img := p.Images[0]
			block.image = &QuestionImage{Name: img.Name, Data: img.Data}
		}
		if started || line == "" {
			continue
		}

		switch {
		case optionRe.MatchString(line):
			block.options = append(block.options, line)
			block.lines = append(block.lines, line)
		case answerKeyRe.MatchString(line):
			block.answerKey = line
			block.hasKey = true
		default:
			block.lines = append(block.lines, line)
		}
	}
	flush()

	return questions
}

// ParseDocument extracts paragraphs from a .docx payload and parses them.
func ParseDocument(data []byte) ([]Question, error) {
	paragraphs, err := docx.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return parseParagraphs(paragraphs), nil
}

// OptionLetter returns the A–E letter an option line starts with.
func OptionLetter(option string) (string, bool) {
	m := optionRe.FindStringSubmatch(strings.TrimSpace(option))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func extractCorrect(line string, ok bool) []string {
	if !ok {
		return nil
	}
	tail := line
	if i := strings.LastIndex(line, ":"); i >= 0 {
		tail = line[i+1:]
	}

	var correct []string
	for _, tok := range answerTokenRe.FindAllString(strings.TrimSpace(tail), -1) {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			correct = append(correct, tok)
		}
	}
	return correct
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
