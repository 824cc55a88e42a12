package standup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler drives the cycle from a periodic tick. It calls the same
// guarded operations the manual commands use.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	log      zerolog.Logger

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	resumeOnce sync.Once
}

func NewScheduler(engine *Engine, interval time.Duration, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		log:      logger.With().Str("component", "scheduler").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Run ticks until ctx is done or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped by context")
			return
		case <-s.stopCh:
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// Tick evaluates phase transitions once.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	defer func() { s.engine.metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	day, phase, err := s.engine.ActiveDay(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("resolving active day failed")
		return
	}

	if phase == PhaseCollecting || phase == PhasePastMidpoint {
		s.resumeOnce.Do(func() {
			if res, err := s.engine.ResumeCollection(ctx); err != nil {
				s.log.Error().Err(err).Str("day", day.Key).Msg("resuming collection failed")
			} else if err := res.Err(); err != nil {
				s.log.Warn().Err(err).Str("day", day.Key).Msg("some resume prompts were not delivered")
			}
		})
		if res, err := s.engine.OpenCollection(ctx); err != nil {
			s.log.Error().Err(err).Str("day", day.Key).Msg("opening collection failed")
		} else if err := res.Err(); err != nil {
			s.log.Warn().Err(err).Str("day", day.Key).Msg("some prompts were not delivered")
		}
	}

	if phase == PhasePastMidpoint && s.engine.Settings().RemindersEnabled {
		if res, err := s.engine.SendReminders(ctx); err != nil {
			s.log.Error().Err(err).Str("day", day.Key).Msg("sending reminders failed")
		} else if err := res.Err(); err != nil {
			s.log.Warn().Err(err).Str("day", day.Key).Msg("some reminders were not delivered")
		}
	}

	days, err := s.engine.PendingSummaries(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("listing days awaiting summary failed")
		return
	}
	for _, d := range days {
		_, err := s.engine.CloseAndSummarize(ctx, d.Key)
		var serr *SummarizationError
		switch {
		case errors.As(err, &serr):
			s.log.Error().Err(err).Str("day", d.Key).Msg("summary failed, retry with /summary")
		case err != nil:
			s.log.Error().Err(err).Str("day", d.Key).Msg("closing day failed")
		}
	}
}
