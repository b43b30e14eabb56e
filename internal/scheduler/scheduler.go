package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Warmer loads the latest published file into the cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Scheduler pre-fetches each week's file shortly after it is published,
// so the first query touching it does not pay for the download.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    Warmer
	at        string
	timeout   time.Duration
}

// New creates a new Scheduler running every Saturday at `at` (HH:MM, UTC).
func New(warmer Warmer, at string, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{
		scheduler: s,
		warmer:    warmer,
		at:        at,
		timeout:   timeout,
	}
}

// Start schedules the weekly job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Saturday().At(s.at).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("scheduler: cache warm-up scheduled for Saturdays at %s UTC", s.at)
	return nil
}

func (s *Scheduler) run() {
	log.Println("scheduler: running cache warm-up job")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.warmer.Warm(ctx); err != nil {
		log.Printf("scheduler: warm-up failed: %v", err)
		return
	}
	log.Println("scheduler: completed cache warm-up job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
