package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PoluyanbIch/DocxQuizBot/internal/service"
)

func questionText(p service.Prompt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Câu %d/%d\n\n%s", p.Position, p.Total, p.Question.Text)

	switch p.Question.Type {
	case service.TypeMultipleChoice, service.TypeTrueFalse:
		sb.WriteString("\n\n👉 Chọn đáp án rồi bấm Xác nhận.")
	case service.TypeSort:
		if len(p.Hint) > 0 {
			sb.WriteString("\n\nGợi ý:\n")
			sb.WriteString(strings.Join(p.Hint, "\n"))
		}
		sb.WriteString("\n\n🔗 Gõ thứ tự đúng:")
	default:
		sb.WriteString("\n\n🧩 Gõ câu trả lời của bạn:")
	}
	return sb.String()
}

// hasCaption reports whether the prompt is shown as a photo with the question as its caption.
func hasCaption(p service.Prompt) bool {
	return p.Question.Image != nil && utf8.RuneCountInString(questionText(p)) <= maxCaptionLength
}

// choiceKeyboard lays choices out two per row with a trailing confirm row.
func choiceKeyboard(choices []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(choices); i += 2 {
		row := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(choices[i], choices[i]))
		if i+1 < len(choices) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(choices[i+1], choices[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Xác nhận", confirmToken),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func reportText(r service.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎯 Đã hoàn tất bài thi!\n\n📊 Kết quả: %d/%d câu đúng\n🏅 Điểm: %.2f/10\n", r.Correct, r.Total, r.Score)

	for _, item := range r.Items {
		if item.IsCorrect {
			fmt.Fprintf(&sb, "\n✅ Câu %d: %s", item.QuestionID, orDash(item.Actual))
			continue
		}
		fmt.Fprintf(&sb, "\n❌ Câu %d: bạn trả lời %s, đáp án %s", item.QuestionID, orDash(item.Actual), orDash(item.Expected))
	}
	return sb.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

// splitMessage cuts text on line boundaries into chunks of at most limit runes.
// A single line longer than limit is cut mid-line.
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current []rune
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		if len(current)+len(runes) > limit && len(current) > 0 {
			chunks = append(chunks, strings.TrimRight(string(current), "\n"))
			current = current[:0]
		}
		for len(runes) > limit {
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		current = append(current, runes...)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.TrimRight(string(current), "\n"))
	}
	return chunks
}
