// Package jobs schedules background maintenance work. Its single job today is
// periodically redriving the client-side completion queue so completions that
// failed transiently still reach the server without user interaction.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// Drainer resends queued completions. Satisfied by *client.Coordinator.
type Drainer interface {
	Drain(ctx context.Context) error
}

// RedriveScheduler runs Drain on a fixed interval.
type RedriveScheduler struct {
	scheduler *gocron.Scheduler
	drainer   Drainer
	interval  time.Duration
	timeout   time.Duration
}

// NewRedriveScheduler builds a scheduler that drains every interval.
// Intervals below one second are raised to one second; each drain run is
// bounded by a timeout of the interval itself.
func NewRedriveScheduler(d Drainer, interval time.Duration) *RedriveScheduler {
	if interval < time.Second {
		interval = time.Second
	}
	return &RedriveScheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		drainer:   d,
		interval:  interval,
		timeout:   interval,
	}
}

// Start begins the periodic redrive in the background.
func (s *RedriveScheduler) Start() {
	_, err := s.scheduler.Every(s.interval).Do(s.runOnce)
	if err != nil {
		log.Error().Err(err).Msg("failed to schedule completion redrive")
		return
	}
	s.scheduler.StartAsync()
}

// Stop halts the scheduler. A drain already in progress finishes.
func (s *RedriveScheduler) Stop() {
	s.scheduler.Stop()
}

func (s *RedriveScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.drainer.Drain(ctx); err != nil {
		log.Warn().Err(err).Msg("completion redrive failed")
	}
}
