package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Deliverer runs one delivery tick
type Deliverer interface {
	DeliverDue(ctx context.Context, now time.Time) (int, error)
}

// TimeoutSweeper requeues unacknowledged reminders
type TimeoutSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Config holds the scheduler timing settings
type Config struct {
	DeliveryIntervalMinutes int
	SweepIntervalMinutes    int
	// Delivery only runs between these local hours; the sweep runs
	// around the clock
	NotificationStartHour int
	NotificationEndHour   int
}

// Scheduler manages the periodic delivery tick and timeout sweep
type Scheduler struct {
	scheduler *gocron.Scheduler
	deliverer Deliverer
	sweeper   TimeoutSweeper
	config    Config
}

// New creates a new scheduler instance
func New(deliverer Deliverer, sweeper TimeoutSweeper, config Config) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		deliverer: deliverer,
		sweeper:   sweeper,
		config:    config,
	}
}

// Start begins running all scheduled jobs
func (s *Scheduler) Start() {
	s.scheduler.Every(s.config.DeliveryIntervalMinutes).Minutes().Do(s.runDelivery)
	s.scheduler.Every(s.config.SweepIntervalMinutes).Minutes().Do(s.runSweep)

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runDelivery() {
	now := time.Now()

	currentHour := now.Hour()
	if currentHour < s.config.NotificationStartHour || currentHour > s.config.NotificationEndHour {
		log.Printf("Current hour %d is outside notification hours (%d-%d), skipping delivery",
			currentHour, s.config.NotificationStartHour, s.config.NotificationEndHour)
		return
	}

	sent, err := s.deliverer.DeliverDue(context.Background(), now)
	if err != nil {
		log.Printf("Error delivering due reviews: %v", err)
		return
	}
	if sent > 0 {
		log.Printf("Delivered %d review reminders", sent)
	}
}

func (s *Scheduler) runSweep() {
	if _, err := s.sweeper.Sweep(context.Background(), time.Now()); err != nil {
		log.Printf("Error sweeping review timeouts: %v", err)
	}
}
