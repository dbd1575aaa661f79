package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/orchestrator"
)

// Warmer prefetches remote fields for one queue.
type Warmer interface {
	Namespace() string
	Warm(ctx context.Context) error
}

type Scheduler struct {
	warmers   []Warmer
	interval  time.Duration
	scheduler gocron.Scheduler
}

func New(interval time.Duration, warmers ...Warmer) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		warmers:   warmers,
		interval:  interval,
		scheduler: s,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	log := logger.Log

	for _, w := range s.warmers {
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(s.interval),
			gocron.NewTask(func() {
				s.warm(ctx, w)
			}),
			gocron.WithName("warm:"+w.Namespace()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
	}

	s.scheduler.Start()
	log.Info().Int("queues", len(s.warmers)).Dur("interval", s.interval).Msg("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		logger.Log.Error().Err(err).Msg("scheduler shutdown error")
	}
}

func (s *Scheduler) warm(ctx context.Context, w Warmer) {
	log := logger.Log.With().Str("queue", w.Namespace()).Logger()

	start := time.Now()
	err := w.Warm(ctx)
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		log.Debug().Msg("queue busy, warm-up skipped")
	case errors.Is(err, orchestrator.ErrCancelled):
		log.Info().Msg("warm-up cancelled")
	case err != nil:
		log.Error().Err(err).Msg("warm-up failed")
	default:
		log.Debug().Dur("took", time.Since(start)).Msg("warm-up done")
	}
}
