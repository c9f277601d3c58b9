// Package sweeper expires stored messages past their retention age.
package sweeper

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mrvasil/telegram-spybot/internal/storage"
	"github.com/mrvasil/telegram-spybot/pkg/logger"
)

// Sweeper periodically deletes messages older than the configured maximum
// age, together with their cached attachments.
type Sweeper struct {
	scheduler   gocron.Scheduler
	messages    *storage.MessageStore
	interval    time.Duration
	maxAgeHours int
}

// New creates a sweeper that runs every interval and expires messages older
// than maxAgeHours.
func New(messages *storage.MessageStore, interval time.Duration, maxAgeHours int) (*Sweeper, error) {
	s := &Sweeper{
		messages:    messages,
		interval:    interval,
		maxAgeHours: maxAgeHours,
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
		gocron.WithName("retention-sweep"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.scheduler = scheduler
	return s, nil
}

// Start begins the sweep schedule.
func (s *Sweeper) Start() {
	s.scheduler.Start()
	logger.Info().
		Dur("interval", s.interval).
		Int("max_age_hours", s.maxAgeHours).
		Msg("Retention sweeper started")
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *Sweeper) Stop() error {
	logger.Info().Msg("Stopping retention sweeper")
	return s.scheduler.Shutdown()
}

// sweep runs one expiry cycle. A failing cycle is logged and the schedule
// keeps going.
func (s *Sweeper) sweep() {
	removed, err := s.messages.CleanupExpired(s.maxAgeHours)
	if err != nil {
		logger.Error().Err(err).Msg("Retention sweep failed")
		return
	}
	logger.Info().Int64("removed", removed).Msg("Retention sweep complete")
}
