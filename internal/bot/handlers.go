package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/excel"
	"github.com/example/vocabbot/internal/quiz"
	"github.com/example/vocabbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const defaultQuizLength = 5

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("Failed to handle callback from user %d: %v", update.CallbackQuery.From.ID, err)
		}
	case update.Message != nil:
		message := update.Message
		if message.Document != nil && b.awaitingFileUpload[message.From.ID] {
			b.handleImportDocument(ctx, message)
			return
		}
		if message.IsCommand() {
			if err := b.handleCommand(ctx, message); err != nil {
				log.Printf("Failed to handle /%s from user %d: %v", message.Command(), message.From.ID, err)
			}
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "help":
		return b.handleHelp(message)
	case "quiz":
		return b.handleQuiz(ctx, message)
	case "due":
		return b.handleDue(ctx, message)
	case "stats":
		return b.handleStats(ctx, message)
	case "mute":
		return b.handleMute(ctx, message, false)
	case "unmute":
		return b.handleMute(ctx, message, true)
	case "import":
		return b.handleImport(message)
	case "processing":
		return b.handleProcessing(ctx, message)
	default:
		b.sendText(message.Chat.ID, "Unknown command. Use /help to see what I can do.")
		return nil
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	user := &models.User{
		ID:                  message.From.ID,
		Username:            message.From.UserName,
		FirstName:           message.From.FirstName,
		LastName:            message.From.LastName,
		IsAdmin:             b.isAdmin(message.From.ID),
		NotificationEnabled: true,
	}
	if err := b.users.Upsert(ctx, user); err != nil {
		return err
	}

	b.sendText(message.Chat.ID,
		"👋 Welcome! I help you learn vocabulary with spaced repetition.\n\n"+
			"Take a /quiz — words you miss go on your review schedule, and "+
			"I'll remind you when it's time to review them. Use /help for all commands.")
	return nil
}

func (b *Bot) handleHelp(message *tgbotapi.Message) error {
	help := "Available commands:\n" +
		"/quiz — take a vocabulary quiz\n" +
		"/due — show words due for review\n" +
		"/stats — your learning statistics\n" +
		"/mute — pause review reminders\n" +
		"/unmute — resume review reminders"
	if b.isAdmin(message.From.ID) {
		help += "\n\nAdmin commands:\n" +
			"/import — upload an xlsx file of words\n" +
			"/processing — delivery pipeline status"
	}
	b.sendText(message.Chat.ID, help)
	return nil
}

func (b *Bot) handleQuiz(ctx context.Context, message *tgbotapi.Message) error {
	length := defaultQuizLength
	if arg := strings.TrimSpace(message.CommandArguments()); arg != "" {
		if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= 20 {
			length = n
		}
	}

	questions, err := b.quizzes.CreateQuiz(ctx, length)
	if err != nil {
		b.sendText(message.Chat.ID, "Can't build a quiz yet — the word catalog is too small.")
		return err
	}

	b.quizSessions[message.From.ID] = &quizSession{
		Questions: questions,
		StartedAt: time.Now(),
	}
	b.sendQuizQuestion(message.Chat.ID, message.From.ID)
	return nil
}

func (b *Bot) sendQuizQuestion(chatID, userID int64) {
	session, ok := b.quizSessions[userID]
	if !ok || session.CurrentIdx >= len(session.Questions) {
		return
	}
	question := session.Questions[session.CurrentIdx]

	var rows [][]MenuButton
	for idx, option := range question.Options {
		rows = append(rows, []MenuButton{{
			Text:         option,
			CallbackData: fmt.Sprintf("quiz_%d_%d", session.CurrentIdx, idx),
		}})
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"Question %d/%d\n\nWhat does \"%s\" mean?",
		session.CurrentIdx+1, len(session.Questions), question.Word.Word))
	msg.ReplyMarkup = createKeyboard(rows)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send quiz question to chat %d: %v", chatID, err)
	}
}

func (b *Bot) handleDue(ctx context.Context, message *tgbotapi.Message) error {
	now := time.Now()
	items, err := b.store.GetDueItems(ctx, message.From.ID, now, 10)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		b.sendText(message.Chat.ID, "🎉 Nothing is due for review right now.")
		return nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.WordID)
	}
	words, err := b.words.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]models.Word, len(words))
	for _, w := range words {
		byID[w.ID] = w
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("📚 %d words due for review:\n\n", len(items)))
	for _, item := range items {
		word, ok := byID[item.WordID]
		if !ok {
			continue
		}
		text.WriteString(fmt.Sprintf("• %s — %s\n", word.Word, word.Translation))
	}
	b.sendText(message.Chat.ID, text.String())
	return nil
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	stats, err := b.store.GetUserStats(ctx, message.From.ID, time.Now())
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"📊 Your progress:\n\n"+
			"Words tracked: %d\n"+
			"In active rotation: %d\n"+
			"Due now: %d\n"+
			"Reviews completed: %d",
		stats.TotalWords, stats.ActiveWords, stats.DueWords, stats.TotalReviews)

	if results, err := b.quizResults.GetRecentByUser(ctx, message.From.ID, 5); err == nil && len(results) > 0 {
		total, correct := 0, 0
		for _, r := range results {
			total += r.TotalWords
			correct += r.CorrectWords
		}
		text += fmt.Sprintf("\nRecent quiz accuracy: %d%%", correct*100/total)
	}

	b.sendText(message.Chat.ID, text)
	return nil
}

func (b *Bot) handleMute(ctx context.Context, message *tgbotapi.Message, enabled bool) error {
	if err := b.users.SetNotificationEnabled(ctx, message.From.ID, enabled); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			b.sendText(message.Chat.ID, "Use /start first so I know who you are.")
			return nil
		}
		return err
	}
	if enabled {
		b.sendText(message.Chat.ID, "🔔 Review reminders are back on.")
	} else {
		b.sendText(message.Chat.ID, "🔕 Review reminders paused. Your schedule keeps running; use /unmute to resume.")
	}
	return nil
}

func (b *Bot) handleImport(message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) {
		b.sendText(message.Chat.ID, "This command is for admins only.")
		return nil
	}
	b.awaitingFileUpload[message.From.ID] = true
	b.sendText(message.Chat.ID,
		"Send me an xlsx file: columns A=word, B=translation, C=description, D=examples, E=difficulty (1-5).")
	return nil
}

func (b *Bot) handleImportDocument(ctx context.Context, message *tgbotapi.Message) {
	delete(b.awaitingFileUpload, message.From.ID)

	path, err := b.downloadDocument(message.Document)
	if err != nil {
		log.Printf("Failed to download import file from user %d: %v", message.From.ID, err)
		b.sendText(message.Chat.ID, "Couldn't download that file, please try again.")
		return
	}

	config := excel.DefaultImportConfig()
	config.FilePath = path
	result, err := excel.ImportWords(ctx, config)
	if err != nil {
		log.Printf("Failed to import words for user %d: %v", message.From.ID, err)
		b.sendText(message.Chat.ID, "Import failed: "+err.Error())
		return
	}

	text := fmt.Sprintf("✅ Imported %d of %d rows (%d skipped).",
		result.Imported, result.TotalProcessed, result.Skipped)
	if len(result.Errors) > 0 {
		text += fmt.Sprintf("\n%d rows had errors; first: %s", len(result.Errors), result.Errors[0])
	}
	b.sendText(message.Chat.ID, text)
}

func (b *Bot) handleProcessing(ctx context.Context, message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) {
		b.sendText(message.Chat.ID, "This command is for admins only.")
		return nil
	}

	stats, err := b.store.GetProcessingStats(ctx, time.Now())
	if err != nil {
		return err
	}
	userCount, err := b.users.Count(ctx)
	if err != nil {
		return err
	}
	wordCount, err := b.words.Count(ctx)
	if err != nil {
		return err
	}

	b.sendText(message.Chat.ID, fmt.Sprintf(
		"⚙️ Delivery pipeline:\n\n"+
			"Due: %d\nIn flight: %d\nAwaiting response: %d\n\n"+
			"Users: %d\nCatalog words: %d",
		stats.Due, stats.InFlight, stats.AwaitingResponse, userCount, wordCount))
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.From == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always answer the callback query to remove the loading state
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := b.api.Request(answer); err != nil {
		log.Printf("Warning: failed to answer callback: %v", err)
	}

	data := callback.Data
	switch {
	case strings.HasPrefix(data, "review_"):
		return b.handleReviewCallback(ctx, callback)
	case strings.HasPrefix(data, "deactivate_"):
		return b.handleDeactivateCallback(ctx, callback)
	case strings.HasPrefix(data, "quiz_"):
		return b.handleQuizCallback(ctx, callback)
	default:
		return fmt.Errorf("unknown callback data %q", data)
	}
}

func (b *Bot) handleReviewCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	parts := strings.SplitN(strings.TrimPrefix(callback.Data, "review_"), "_", 2)
	if len(parts) != 2 {
		return fmt.Errorf("malformed review callback %q", callback.Data)
	}
	wordID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid word ID in callback data: %w", err)
	}
	difficulty := models.Difficulty(parts[1])

	// Drop the keyboard first so a second tap on the same reminder
	// can't double-count the review
	b.removeKeyboard(callback)

	schedule, err := b.recorder.RecordReview(ctx, callback.From.ID, wordID, difficulty, time.Now())
	if err != nil {
		b.sendText(callback.Message.Chat.ID, "Couldn't record that review, please try again.")
		return err
	}

	b.sendText(callback.Message.Chat.ID,
		fmt.Sprintf("✅ Got it. Next review in %s.", formatInterval(schedule.IntervalMinutes)))
	return nil
}

func (b *Bot) handleDeactivateCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	wordID, err := strconv.ParseInt(strings.TrimPrefix(callback.Data, "deactivate_"), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid word ID in callback data: %w", err)
	}

	b.removeKeyboard(callback)

	if err := b.store.Deactivate(ctx, callback.From.ID, wordID, time.Now()); err != nil {
		return err
	}
	b.sendText(callback.Message.Chat.ID, "🚫 Okay, I won't remind you about this word anymore.")
	return nil
}

func (b *Bot) handleQuizCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	parts := strings.Split(strings.TrimPrefix(callback.Data, "quiz_"), "_")
	if len(parts) != 2 {
		return fmt.Errorf("malformed quiz callback %q", callback.Data)
	}
	questionIdx, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("invalid question index: %w", err)
	}
	optionIdx, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid option index: %w", err)
	}

	session, ok := b.quizSessions[callback.From.ID]
	if !ok || questionIdx != session.CurrentIdx || questionIdx >= len(session.Questions) {
		// Stale button from a finished or restarted quiz
		return nil
	}
	question := session.Questions[questionIdx]
	if optionIdx < 0 || optionIdx >= len(question.Options) {
		return fmt.Errorf("option index %d out of range", optionIdx)
	}

	b.removeKeyboard(callback)

	if optionIdx == question.CorrectIndex {
		session.Correct++
		b.sendText(callback.Message.Chat.ID, "✅ Correct!")
	} else {
		b.sendText(callback.Message.Chat.ID, fmt.Sprintf(
			"❌ Not quite: \"%s\" means \"%s\". I'll remind you to review it.",
			question.Word.Word, question.Word.Translation))
		// A missed word enters the review schedule
		if _, err := b.store.CreateOrGet(ctx, callback.From.ID, question.Word.ID, time.Now()); err != nil {
			log.Printf("Failed to schedule word %d for user %d: %v", question.Word.ID, callback.From.ID, err)
		}
	}

	session.CurrentIdx++
	if session.CurrentIdx < len(session.Questions) {
		b.sendQuizQuestion(callback.Message.Chat.ID, callback.From.ID)
		return nil
	}

	return b.finishQuiz(ctx, callback.Message.Chat.ID, callback.From.ID)
}

func (b *Bot) finishQuiz(ctx context.Context, chatID, userID int64) error {
	session, ok := b.quizSessions[userID]
	if !ok {
		return nil
	}
	delete(b.quizSessions, userID)

	result := &models.QuizResult{
		UserID:       userID,
		QuizType:     quiz.TypeMultipleChoice,
		TotalWords:   len(session.Questions),
		CorrectWords: session.Correct,
		Duration:     int(time.Since(session.StartedAt).Seconds()),
	}
	if err := b.quizResults.Create(ctx, result); err != nil {
		log.Printf("Failed to store quiz result for user %d: %v", userID, err)
	}

	b.sendText(chatID, fmt.Sprintf(
		"🏁 Quiz finished: %d/%d correct. Missed words are on your review schedule.",
		session.Correct, len(session.Questions)))
	return nil
}

// removeKeyboard strips the inline keyboard from the message a
// callback came from
func (b *Bot) removeKeyboard(callback *tgbotapi.CallbackQuery) {
	edit := tgbotapi.NewEditMessageReplyMarkup(
		callback.Message.Chat.ID, callback.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		log.Printf("Warning: failed to remove keyboard: %v", err)
	}
}

// downloadDocument fetches an uploaded telegram document into a
// temporary file and returns its path
func (b *Bot) downloadDocument(document *tgbotapi.Document) (string, error) {
	url, err := b.api.GetFileDirectURL(document.FileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file URL: %w", err)
	}
	return downloadToTemp(url, document.FileName)
}

// formatInterval renders a minute count the way users think about it
func formatInterval(minutes int) string {
	switch {
	case minutes < 60:
		return fmt.Sprintf("%d minutes", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%d hours", minutes/60)
	default:
		days := minutes / (24 * 60)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
