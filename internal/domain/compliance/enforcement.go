package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RunRetention scans the customer population and applies each recommended
// action. One subject's failure is tallied and the run moves on; only a
// failure to load the snapshot set aborts the whole run. The run is a
// process singleton: an overlapping invocation fails with ErrConflict
// instead of double-processing subjects.
//
// A second run over an unchanged dataset processes nothing: anonymized
// subjects are excluded by the scanner and deleted subjects are gone.
func (s *Service) RunRetention(ctx context.Context) (RunStats, error) {
	if !s.runMu.TryLock() {
		return RunStats{}, fmt.Errorf("retention run: %w: another run is in progress", ErrConflict)
	}
	defer s.runMu.Unlock()

	stats := RunStats{StartedAt: time.Now()}
	snapshots, err := s.store.ListRetentionSnapshots(ctx)
	if err != nil {
		return RunStats{}, fmt.Errorf("retention run: %w: %v", ErrStore, err)
	}
	issues := Scan(time.Now(), s.policies, snapshots)

	byID := make(map[string]CustomerSnapshot, len(snapshots))
	for _, snap := range snapshots {
		byID[snap.CustomerID] = snap
	}

	for _, issue := range issues {
		var (
			result OperationResult
			opErr  error
		)
		switch issue.RecommendedAction {
		case ActionAnonymize:
			result, opErr = s.AnonymizeSubject(ctx, issue.CustomerID, true)
		case ActionDelete:
			// Deleting a subject must not destroy booking or payment rows
			// that are still inside their own retention windows.
			snap := byID[issue.CustomerID]
			preserve := snap.BookingCount > 0 || snap.PaymentCount > 0
			result, opErr = s.DeleteSubject(ctx, issue.CustomerID, preserve, false)
		case ActionReview:
			continue
		default:
			continue
		}
		if opErr != nil || !result.Success {
			stats.Errors++
			slog.Warn("retention action failed",
				"customerId", issue.CustomerID,
				"action", issue.RecommendedAction,
				"err", opErr,
				"detail", result.Detail)
			continue
		}
		stats.Processed++
	}

	stats.CompletedAt = time.Now()
	s.metrics.RetentionRun(stats.Processed, stats.Errors)
	s.recordRun(ctx, stats)
	s.setLastRun(stats)
	return stats, nil
}

func (s *Service) LastRun() (RunStats, bool) {
	s.lastRunMu.Lock()
	defer s.lastRunMu.Unlock()
	if s.lastRun == nil {
		return RunStats{}, false
	}
	return *s.lastRun, true
}

func (s *Service) setLastRun(stats RunStats) {
	s.lastRunMu.Lock()
	s.lastRun = &stats
	s.lastRunMu.Unlock()
}

func (s *Service) recordRun(ctx context.Context, stats RunStats) {
	status := "completed"
	if stats.Errors > 0 {
		status = "completed_with_errors"
	}
	if _, err := s.store.RecordRetentionRun(ctx, RetentionRun{
		Processed:   stats.Processed,
		Errors:      stats.Errors,
		Status:      status,
		StartedAt:   stats.StartedAt,
		CompletedAt: stats.CompletedAt,
	}); err != nil {
		slog.Warn("retention run record failed", "err", err)
	}
}
