package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/example/vocabbot/internal/ai"
	"github.com/example/vocabbot/internal/config"
	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/delivery"
	"github.com/example/vocabbot/internal/quiz"
	"github.com/example/vocabbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MenuButton represents a button in an inline menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// quizSession represents a user's ongoing quiz
type quizSession struct {
	Questions  []quiz.Question
	CurrentIdx int
	Correct    int
	StartedAt  time.Time
}

// Bot represents the Telegram bot application. It is both the chat
// front-end and the delivery.Notifier the coordinator dispatches
// reminders through.
type Bot struct {
	api                *tgbotapi.BotAPI
	store              database.ReviewStore
	words              *database.WordRepository
	users              *database.UserRepository
	quizResults        *database.QuizResultRepository
	recorder           *delivery.Recorder
	quizzes            *quiz.Module
	chatGPT            *ai.ChatGPT
	adminUserIDs       map[int64]bool
	quizSessions       map[int64]*quizSession
	awaitingFileUpload map[int64]bool
}

// New creates a new bot instance
func New(cfg *config.Config, store database.ReviewStore, words *database.WordRepository,
	users *database.UserRepository, quizResults *database.QuizResultRepository,
	recorder *delivery.Recorder, quizzes *quiz.Module) (*Bot, error) {

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %v", err)
	}

	var chatGPT *ai.ChatGPT
	if cfg.OpenAIKey != "" {
		chatGPT, err = ai.New(cfg.OpenAIKey)
		if err != nil {
			log.Printf("Warning: unable to initialize OpenAI client: %v", err)
			chatGPT = nil
		}
	}

	bot := &Bot{
		api:                api,
		store:              store,
		words:              words,
		users:              users,
		quizResults:        quizResults,
		recorder:           recorder,
		quizzes:            quizzes,
		chatGPT:            chatGPT,
		adminUserIDs:       make(map[int64]bool),
		quizSessions:       make(map[int64]*quizSession),
		awaitingFileUpload: make(map[int64]bool),
	}
	for _, id := range cfg.AdminUserIDs {
		bot.adminUserIDs[id] = true
	}

	return bot, nil
}

// Start begins polling for updates and blocks until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Printf("Bot authorized as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Stop terminates update polling
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.adminUserIDs[userID]
}

// Send implements delivery.Notifier: it dispatches a review reminder
// for a word and returns the telegram message id.
func (b *Bot) Send(ctx context.Context, userID int64, word models.Word) (string, error) {
	if user, err := b.users.GetByID(ctx, userID); err == nil && !user.NotificationEnabled {
		// The item stays due; delivery resumes when the user unmutes
		return "", fmt.Errorf("user %d has reminders muted", userID)
	}

	// In Telegram the chat ID equals the user ID for private chats
	text := fmt.Sprintf("🔔 Time to review!\n\n📖 %s — %s", word.Word, word.Translation)
	if word.Description != "" {
		text += fmt.Sprintf("\n💡 %s", word.Description)
	}
	if example := b.exampleFor(ctx, word); example != "" {
		text += fmt.Sprintf("\n✍️ %s", example)
	}
	text += "\n\nHow well do you remember this word?"

	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{
			{Text: "😓 Hard", CallbackData: reviewCallback(word.ID, models.DifficultyHard)},
			{Text: "🙂 Normal", CallbackData: reviewCallback(word.ID, models.DifficultyNormal)},
		},
		{
			{Text: "😀 Easy", CallbackData: reviewCallback(word.ID, models.DifficultyEasy)},
			{Text: "🤩 Very easy", CallbackData: reviewCallback(word.ID, models.DifficultyVeryEasy)},
		},
		{
			{Text: "🚫 Stop reminding", CallbackData: fmt.Sprintf("deactivate_%d", word.ID)},
		},
	})

	sent, err := b.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("failed to send reminder: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// exampleFor returns an example sentence for the reminder: a stored
// one when the catalog has it, a generated one when OpenAI is
// configured, otherwise nothing
func (b *Bot) exampleFor(ctx context.Context, word models.Word) string {
	if word.Examples != "" {
		return word.Examples
	}
	if b.chatGPT == nil {
		return ""
	}
	example, err := b.chatGPT.GenerateExample(ctx, word)
	if err != nil {
		log.Printf("Failed to generate example for word %d: %v", word.ID, err)
		return ""
	}
	return example
}

func reviewCallback(wordID int64, difficulty models.Difficulty) string {
	return fmt.Sprintf("review_%d_%s", wordID, difficulty)
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
	}
}

// downloadToTemp fetches a file into the temp directory and returns
// its path
func downloadToTemp(url, name string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: status %s", resp.Status)
	}

	f, err := os.CreateTemp("", "vocabbot-import-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return f.Name(), nil
}
