package compliance

import (
	"context"
	"fmt"
	"sync"
	"time"

	cryptoutil "clinic/internal/platform/crypto"
	"clinic/internal/platform/metrics"
)

type Options struct {
	ExportDir       string
	DownloadBaseURL string
	ExportTokenTTL  time.Duration
}

type Service struct {
	store    StoreAPI
	policies []RetentionPolicy
	sink     NotificationSink
	metrics  *metrics.Collector
	crypto   *cryptoutil.Service
	opts     Options

	locks subjectLocks

	runMu     sync.Mutex
	lastRunMu sync.Mutex
	lastRun   *RunStats
}

func NewService(store StoreAPI, policies []RetentionPolicy, sink NotificationSink, collector *metrics.Collector, crypto *cryptoutil.Service, opts Options) *Service {
	if opts.ExportDir == "" {
		opts.ExportDir = "storage/exports"
	}
	if opts.ExportTokenTTL <= 0 {
		opts.ExportTokenTTL = 24 * time.Hour
	}
	return &Service{
		store:    store,
		policies: policies,
		sink:     sink,
		metrics:  collector,
		crypto:   crypto,
		opts:     opts,
	}
}

func (s *Service) Policies() []RetentionPolicy {
	out := make([]RetentionPolicy, len(s.policies))
	copy(out, s.policies)
	return out
}

func (s *Service) ListPendingRequests(ctx context.Context) ([]DataSubjectRequest, error) {
	requests, err := s.store.ListPendingRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w: %v", ErrStore, err)
	}
	return requests, nil
}

func (s *Service) ListComplianceIssues(ctx context.Context) ([]ComplianceIssue, error) {
	snapshots, err := s.store.ListRetentionSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list retention snapshots: %w: %v", ErrStore, err)
	}
	return Scan(time.Now(), s.policies, snapshots), nil
}

func (s *Service) ListRetentionRuns(ctx context.Context, limit int) ([]RetentionRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	runs, err := s.store.ListRetentionRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list retention runs: %w: %v", ErrStore, err)
	}
	return runs, nil
}
