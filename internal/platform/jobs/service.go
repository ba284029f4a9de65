package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"clinic/internal/domain/compliance"
)

// Service runs retention enforcement unattended on a cron schedule. The
// engine itself guards against overlapping runs; an overlap here is logged
// and skipped, not treated as a failure.
type Service struct {
	engine   *compliance.Service
	schedule string
	cron     *cron.Cron
}

func New(engine *compliance.Service, schedule string) *Service {
	return &Service{
		engine:   engine,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the retention job and begins the scheduler. An empty
// schedule disables unattended enforcement; operators can still trigger runs
// through the API.
func (s *Service) Start(ctx context.Context) error {
	if s.schedule == "" {
		slog.Info("retention schedule not configured, unattended enforcement disabled")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runRetention(ctx) }); err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}
	s.cron.Start()
	slog.Info("retention scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}

func (s *Service) runRetention(ctx context.Context) {
	stats, err := s.engine.RunRetention(ctx)
	if err != nil {
		if errors.Is(err, compliance.ErrConflict) {
			slog.Warn("scheduled retention run skipped, another run in progress")
			return
		}
		slog.Error("scheduled retention run failed", "err", err)
		return
	}
	slog.Info("scheduled retention run finished", "processed", stats.Processed, "errors", stats.Errors)
}
