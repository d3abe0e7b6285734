package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/vocabbot/internal/bot"
	"github.com/example/vocabbot/internal/config"
	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/delivery"
	"github.com/example/vocabbot/internal/quiz"
	"github.com/example/vocabbot/internal/scheduler"
	"github.com/example/vocabbot/internal/spaced_repetition"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := database.Connect(cfg.DBType, cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	store := database.NewReviewItemRepository()
	words := database.NewWordRepository()
	users := database.NewUserRepository()
	quizResults := database.NewQuizResultRepository()

	policy := spaced_repetition.NewPolicy()
	recorder := delivery.NewRecorder(store, policy)

	b, err := bot.New(cfg, store, words, users, quizResults, recorder, quiz.NewModule(words))
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	coordinator := delivery.NewCoordinator(store, words, b, cfg.DeliveryBatchLimit)
	sweeper := delivery.NewSweeper(store, cfg.TimeoutMinutes)

	jobs := scheduler.New(coordinator, sweeper, scheduler.Config{
		DeliveryIntervalMinutes: cfg.DeliveryIntervalMinutes,
		SweepIntervalMinutes:    cfg.SweepIntervalMinutes,
		NotificationStartHour:   cfg.NotificationStartHour,
		NotificationEndHour:     cfg.NotificationEndHour,
	})
	jobs.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := b.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Bot error: %v", err)
		}
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Bot started. Press Ctrl+C to stop.")
	sig := <-sigChan
	log.Printf("Received signal: %v", sig)

	jobs.Stop()
	b.Stop()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("Shutdown timed out")
	}
	log.Println("Bot stopped successfully")
}
