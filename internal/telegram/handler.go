package telegram

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/semaphore"

	"github.com/PoluyanbIch/DocxQuizBot/internal/logger"
	"github.com/PoluyanbIch/DocxQuizBot/internal/metrics"
	"github.com/PoluyanbIch/DocxQuizBot/internal/service"
)

const (
	docxExtension = ".docx"

	confirmToken     = "confirm"
	restartToken     = "restart"
	leaderboardToken = "leaderboard"

	// Telegram rejects messages longer than 4096 characters and captions longer than 1024.
	maxMessageLength = 4000
	maxCaptionLength = 1024

	staleNotice = "⌛ Câu hỏi đã qua."
)

var ErrInvalidExtension = errors.New("document is not a .docx file")

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Options struct {
	UpdateTimeout        int
	MaxConcurrentUpdates int64
	LeaderboardSize      int
}

type Bot struct {
	api         botAPI
	driver      *service.Driver
	leaderboard service.LeaderboardService
	downloader  *Downloader
	metrics     *metrics.Metrics
	log         *logger.Logger
	opts        Options
	inflight    *semaphore.Weighted
	wg          sync.WaitGroup
}

func NewBot(api botAPI, driver *service.Driver, leaderboard service.LeaderboardService, downloader *Downloader, m *metrics.Metrics, log *logger.Logger, opts Options) *Bot {
	if opts.MaxConcurrentUpdates <= 0 {
		opts.MaxConcurrentUpdates = 1
	}
	return &Bot{
		api:         api,
		driver:      driver,
		leaderboard: leaderboard,
		downloader:  downloader,
		metrics:     m,
		log:         log,
		opts:        opts,
		inflight:    semaphore.NewWeighted(opts.MaxConcurrentUpdates),
	}
}

// Start polls for updates until ctx is cancelled. Each update runs on its own goroutine;
// the driver serializes work per user.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.UpdateTimeout

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := b.inflight.Acquire(ctx, 1); err != nil {
				b.api.StopReceivingUpdates()
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				defer b.inflight.Release(1)
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate routes one update. A panic is logged and never reaches the caller.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panic", "update_id", update.UpdateID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := chatID
	if msg.From != nil {
		userID = msg.From.ID
	}

	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start", "help":
			b.sendWelcome(chatID)
		case "startquiz":
			b.startQuiz(ctx, chatID, userID, msg.From)
		case "status":
			b.handleStatus(chatID, userID)
		case "leaderboard":
			b.handleLeaderboard(ctx, chatID)
		default:
			b.sendMessage(chatID, "Lệnh không hợp lệ. Gõ /help để xem hướng dẫn.")
		}
	case msg.Document != nil:
		b.handleDocument(ctx, chatID, userID, msg.Document)
	case msg.Text != "":
		b.handleText(ctx, chatID, userID, msg.From, msg.Text)
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.Message.Chat == nil || callback.From == nil {
		b.answerCallback(callback.ID, "")
		return
	}
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID
	data := callback.Data

	switch data {
	case confirmToken:
		b.confirmChoice(ctx, chatID, userID, callback)
	case restartToken:
		b.answerCallback(callback.ID, "")
		b.startQuiz(ctx, chatID, userID, callback.From)
	case leaderboardToken:
		b.answerCallback(callback.ID, "")
		b.handleLeaderboard(ctx, chatID)
	default:
		b.selectChoice(chatID, userID, callback, data)
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Warn("answer callback failed", "error", err)
	}
}

func (b *Bot) sendWelcome(chatID int64) {
	b.sendMessage(chatID, "👋 Xin chào! Gửi file .docx chứa đề thi để bắt đầu.\n\n"+
		"Bot nhận dạng các dạng câu hỏi:\n"+
		"• Trắc nghiệm (A, B, C, D, E)\n"+
		"• Đúng / Sai\n"+
		"• Điền từ\n"+
		"• Sắp xếp thứ tự\n\n"+
		"Lệnh:\n"+
		"/startquiz - làm bài với đề đã tải\n"+
		"/status - xem tiến độ\n"+
		"/leaderboard - bảng xếp hạng\n\n"+
		"Bot sẽ chấm điểm trên thang 10 sau khi bạn làm xong!")
}

func (b *Bot) handleDocument(ctx context.Context, chatID, userID int64, doc *tgbotapi.Document) {
	log := b.log.With("user_id", userID, "file_name", doc.FileName)

	if err := b.validateDocument(doc); err != nil {
		b.metrics.ObserveDocument(metrics.DocumentRejected)
		log.Info("document rejected", "error", err)
		if errors.Is(err, ErrFileTooLarge) {
			b.sendMessage(chatID, "⚠️ File quá lớn.")
		} else {
			b.sendMessage(chatID, "⚠️ Gửi file .docx hợp lệ!")
		}
		return
	}

	data, err := b.fetchDocument(ctx, doc.FileID)
	if err != nil {
		b.metrics.ObserveDocument(metrics.DocumentFailed)
		log.Error("document download failed", "error", err)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			b.sendMessage(chatID, "⏱ Tải file quá lâu, vui lòng gửi lại.")
		case errors.Is(err, ErrFileTooLarge):
			b.sendMessage(chatID, "⚠️ File quá lớn.")
		default:
			b.sendMessage(chatID, "❌ Không tải được file, vui lòng thử lại.")
		}
		return
	}

	questions, err := service.ParseDocument(data)
	if err != nil {
		b.metrics.ObserveDocument(metrics.DocumentFailed)
		log.Error("document parse failed", "error", err, "size", len(data))
		b.sendMessage(chatID, "❌ Không đọc được file .docx.")
		return
	}

	set, err := b.driver.Load(userID, doc.FileName, questions)
	if errors.Is(err, service.ErrEmptyResult) {
		b.metrics.ObserveDocument(metrics.DocumentEmpty)
		b.sendMessage(chatID, "❌ Không tìm thấy câu hỏi nào.")
		return
	}
	if err != nil {
		b.metrics.ObserveDocument(metrics.DocumentFailed)
		log.Error("question set load failed", "error", err)
		b.sendMessage(chatID, "❌ Có lỗi xảy ra, vui lòng thử lại.")
		return
	}

	b.metrics.ObserveDocument(metrics.DocumentLoaded)
	log.Info("question set loaded", "quiz_id", set.ID, "questions", len(set.Questions))
	b.sendMessage(chatID, fmt.Sprintf("✅ Đã tải %d câu hỏi!\nGõ /startquiz để bắt đầu.", len(set.Questions)))
}

// validateDocument checks what Telegram reports about an upload before downloading it.
func (b *Bot) validateDocument(doc *tgbotapi.Document) error {
	if !hasDocxExtension(doc.FileName) {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, doc.FileName)
	}
	if int64(doc.FileSize) > b.downloader.MaxSize() {
		return fmt.Errorf("%w: declared %d bytes", ErrFileTooLarge, doc.FileSize)
	}
	return nil
}

func (b *Bot) fetchDocument(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	return b.downloader.Fetch(ctx, url)
}

func (b *Bot) startQuiz(ctx context.Context, chatID, userID int64, user *tgbotapi.User) {
	prompt, err := b.driver.Begin(userID)
	if errors.Is(err, service.ErrNoQuestionSet) {
		b.sendMessage(chatID, "📄 Gửi file đề trước nhé.")
		return
	}
	if err != nil {
		b.log.Error("start quiz failed", "user_id", userID, "error", err)
		b.sendMessage(chatID, "❌ Có lỗi xảy ra, vui lòng thử lại.")
		return
	}

	b.metrics.ObserveQuizStarted()
	b.sendPrompt(ctx, chatID, userID, user, prompt)
}

func (b *Bot) handleText(ctx context.Context, chatID, userID int64, user *tgbotapi.User, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	prompt, err := b.driver.SubmitText(userID, text)
	if err != nil {
		// text outside a fill or sort question is not an answer
		return
	}
	b.metrics.ObserveAnswer("text")
	b.sendPrompt(ctx, chatID, userID, user, prompt)
}

func (b *Bot) selectChoice(chatID, userID int64, callback *tgbotapi.CallbackQuery, choice string) {
	if _, err := b.driver.SelectFrom(userID, callback.Message.MessageID, choice); err != nil {
		switch {
		case errors.Is(err, service.ErrStalePrompt):
			b.answerCallback(callback.ID, staleNotice)
		case errors.Is(err, service.ErrSessionMissing):
			b.answerCallback(callback.ID, "")
			b.sendMessage(chatID, "📄 Gửi file đề trước nhé.")
		case errors.Is(err, service.ErrQuizCompleted):
			b.answerCallback(callback.ID, "")
			b.sendMessage(chatID, "🎯 Bài thi đã hoàn tất. Gõ /startquiz để làm lại.")
		default:
			b.answerCallback(callback.ID, "Lựa chọn không hợp lệ")
		}
		return
	}
	b.answerCallback(callback.ID, "Đã chọn "+choice)

	prompt, err := b.driver.Current(userID)
	if err != nil || prompt.Completed() {
		return
	}

	text := questionText(prompt) + "\n\n👉 Bạn đã chọn: " + choice
	keyboard := choiceKeyboard(prompt.Choices)
	var edit tgbotapi.Chattable = tgbotapi.NewEditMessageTextAndMarkup(chatID, callback.Message.MessageID, text, keyboard)
	if hasCaption(prompt) {
		caption := tgbotapi.NewEditMessageCaption(chatID, callback.Message.MessageID, text)
		caption.ReplyMarkup = &keyboard
		edit = caption
	}
	if _, err := b.api.Send(edit); err != nil {
		b.log.Debug("edit message failed", "user_id", userID, "error", err)
		b.sendMessage(chatID, "👉 Bạn đã chọn: "+choice)
	}
}

func (b *Bot) confirmChoice(ctx context.Context, chatID, userID int64, callback *tgbotapi.CallbackQuery) {
	prompt, err := b.driver.ConfirmFrom(userID, callback.Message.MessageID)
	if errors.Is(err, service.ErrStalePrompt) {
		b.answerCallback(callback.ID, staleNotice)
		return
	}
	b.answerCallback(callback.ID, "")

	switch {
	case errors.Is(err, service.ErrNothingSelected):
		b.sendMessage(chatID, "⚠️ Bạn chưa chọn đáp án.")
		return
	case errors.Is(err, service.ErrSessionMissing):
		b.sendMessage(chatID, "📄 Gửi file đề trước nhé.")
		return
	case errors.Is(err, service.ErrQuizCompleted):
		b.sendMessage(chatID, "🎯 Bài thi đã hoàn tất. Gõ /startquiz để làm lại.")
		return
	case err != nil:
		b.log.Error("confirm failed", "user_id", userID, "error", err)
		return
	}

	b.metrics.ObserveAnswer("choice")
	b.sendPrompt(ctx, chatID, userID, callback.From, prompt)
}

func (b *Bot) sendPrompt(ctx context.Context, chatID, userID int64, user *tgbotapi.User, prompt service.Prompt) {
	if prompt.Completed() {
		b.finishQuiz(ctx, chatID, userID, user, prompt)
		return
	}

	sent, err := b.sendQuestion(chatID, prompt)
	if err != nil {
		b.log.Error("send question failed", "user_id", userID, "error", err)
		return
	}
	if err := b.driver.Attach(userID, prompt.Position, sent.MessageID); err != nil {
		b.log.Warn("attach question message failed", "user_id", userID, "error", err)
	}
}

// sendQuestion returns the message that carries the choice keyboard. A question
// with an image goes out as a photo; when the text does not fit in a caption the
// photo is sent bare and the text follows as its own message.
func (b *Bot) sendQuestion(chatID int64, prompt service.Prompt) (tgbotapi.Message, error) {
	text := questionText(prompt)
	img := prompt.Question.Image

	if img != nil {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: img.Name, Bytes: img.Data})
		if !hasCaption(prompt) {
			if _, err := b.api.Send(photo); err != nil {
				b.log.Warn("send question image failed", "error", err)
			}
		} else {
			photo.Caption = text
			if len(prompt.Choices) > 0 {
				photo.ReplyMarkup = choiceKeyboard(prompt.Choices)
			}
			sent, err := b.api.Send(photo)
			if err == nil {
				return sent, nil
			}
			// fall back to plain text so the quiz can go on
			b.log.Warn("send question image failed", "error", err)
		}
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if len(prompt.Choices) > 0 {
		msg.ReplyMarkup = choiceKeyboard(prompt.Choices)
	}
	return b.api.Send(msg)
}

func (b *Bot) finishQuiz(ctx context.Context, chatID, userID int64, user *tgbotapi.User, prompt service.Prompt) {
	report := prompt.Report
	b.metrics.ObserveQuizCompleted(report.Score)

	resultText := reportText(*report)

	if user != nil {
		entry := service.NewLeaderboardEntry(userID, user.UserName, user.FirstName, prompt.SetID, prompt.FileName, *report, time.Now())
		if b.leaderboard.AddEntry(ctx, entry) {
			if pos, _ := b.leaderboard.GetUserPosition(ctx, userID); pos != -1 {
				resultText += fmt.Sprintf("\n\n🎉 Kỷ lục mới! Bạn đang ở vị trí %d trên bảng xếp hạng.", pos)
			}
		}
	}

	chunks := splitMessage(resultText, maxMessageLength)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if i == len(chunks)-1 {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("🔁 Làm lại", restartToken),
					tgbotapi.NewInlineKeyboardButtonData("🏆 Bảng xếp hạng", leaderboardToken),
				),
			)
		}
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send result failed", "user_id", userID, "error", err)
		}
	}
}

func (b *Bot) handleStatus(chatID, userID int64) {
	status, err := b.driver.Status(userID)
	if err != nil {
		b.log.Error("status failed", "user_id", userID, "error", err)
		return
	}

	switch status.State {
	case service.StateIdle:
		b.sendMessage(chatID, "📄 Chưa có đề. Gửi file .docx để bắt đầu.")
	case service.StateInProgress:
		text := fmt.Sprintf("📊 Đề: %s\nĐã trả lời: %d/%d", status.FileName, status.Answered, status.Total)
		if status.Selected != "" {
			text += "\nĐang chọn: " + status.Selected
		}
		b.sendMessage(chatID, text)
	case service.StateCompleted:
		b.sendMessage(chatID, fmt.Sprintf("✅ Đề %s đã hoàn tất (%d câu). Gõ /startquiz để làm lại.", status.FileName, status.Total))
	}
}

func (b *Bot) handleLeaderboard(ctx context.Context, chatID int64) {
	top := b.leaderboard.GetTop(ctx, b.opts.LeaderboardSize)
	if len(top) == 0 {
		b.sendMessage(chatID, "🏆 Bảng xếp hạng\n\nChưa có kết quả nào. Hãy là người đầu tiên! 🎯")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 Bảng xếp hạng\n\n")
	for i, entry := range top {
		username := entry.FirstName
		if entry.Username != "" {
			username = "@" + entry.Username
		}

		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}

		fmt.Fprintf(&sb, "%s %d. %s - %.2f/10 (%d/%d)\n   📅 %s\n\n",
			medal, i+1, username, entry.Score, entry.Correct, entry.Total, entry.Date)
	}
	b.sendMessage(chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message failed", "chat_id", chatID, "error", err)
	}
}

func hasDocxExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), docxExtension)
}
