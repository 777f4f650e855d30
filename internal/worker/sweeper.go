package worker

import (
	"context"
	"fmt"
	"time"

	"pcbooking/internal/config"
	"pcbooking/internal/domain"
	"pcbooking/internal/events"
	"pcbooking/internal/interval"
	"pcbooking/internal/metrics"

	"github.com/rs/zerolog"
)

// Pruner hard-deletes reservations whose last day is before cutoff.
type Pruner interface {
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically removes reservations that ended more than
// RetentionDays ago, active or cancelled.
type Sweeper struct {
	store    Pruner
	eventBus domain.EventPublisher
	clock    domain.Clock
	retry    RetryPolicy
	cfg      config.SweepConfig
	logger   *zerolog.Logger
}

func NewSweeper(store Pruner, eventBus domain.EventPublisher, clock domain.Clock, cfg config.SweepConfig, retry RetryPolicy, logger *zerolog.Logger) *Sweeper {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &Sweeper{
		store:    store,
		eventBus: eventBus,
		clock:    clock,
		retry:    retry,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Sweeper) interval() time.Duration {
	d, err := time.ParseDuration(s.cfg.Interval)
	if err != nil || d <= 0 {
		if s.cfg.Interval != "" {
			s.logger.Warn().Err(err).Str("interval", s.cfg.Interval).Msg("Failed to parse sweep interval, using default 24h")
		}
		return 24 * time.Hour
	}
	return d
}

// Cutoff is the first day that survives a sweep run now.
func (s *Sweeper) Cutoff() time.Time {
	return interval.Truncate(s.clock.Now()).AddDate(0, 0, -s.cfg.RetentionDays)
}

// Start runs a sweep immediately and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("Sweeper is disabled")
		return
	}

	every := s.interval()
	s.logger.Info().Dur("interval", every).Int("retention_days", s.cfg.RetentionDays).Msg("Sweeper started")
	defer s.logger.Info().Msg("Sweeper stopped")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("Sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce deletes reservations that ended before Cutoff, retrying store
// failures with the configured backoff.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.Cutoff()
	var deleted int64
	err := s.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		n, err := s.store.DeleteEndedBefore(ctx, cutoff)
		if err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Sweep attempt failed")
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep reservations ended before %s: %w", interval.FormatDate(cutoff), err)
	}

	metrics.AddSweepDeleted(deleted)
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Str("cutoff", interval.FormatDate(cutoff)).Msg("Swept ended reservations")
	}
	if s.eventBus != nil {
		payload := events.SweepEventPayload{Cutoff: interval.FormatDate(cutoff), Deleted: deleted}
		if err := s.eventBus.PublishJSON(events.EventReservationsSwept, payload); err != nil {
			s.logger.Error().Err(err).Msg("publish sweep event error")
		}
	}
	return deleted, nil
}
