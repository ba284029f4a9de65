package compliance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func overdueCustomer(store *fakeStore, id string) {
	created := time.Now().Add(-8 * 365 * 24 * time.Hour)
	store.addCustomer(Customer{ID: id, Email: id + "@example.com", CreatedAt: created})
	store.addSnapshot(CustomerSnapshot{CustomerID: id, CreatedAt: created})
}

func TestRunRetentionSecondPassProcessesNothing(t *testing.T) {
	store := newFakeStore()
	overdueCustomer(store, "cust-1")
	svc := newTestService(t, store, nil)

	first, err := svc.RunRetention(context.Background())
	if err != nil {
		t.Fatalf("first run error: %v", err)
	}
	if first.Processed != 1 || first.Errors != 0 {
		t.Fatalf("first run: expected 1 processed, got %+v", first)
	}

	second, err := svc.RunRetention(context.Background())
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if second.Processed != 0 || second.Errors != 0 {
		t.Fatalf("second run over unchanged data must be idle, got %+v", second)
	}

	if len(store.runs) != 2 {
		t.Fatalf("expected 2 recorded runs, got %d", len(store.runs))
	}
	for _, run := range store.runs {
		if run.Status != "completed" {
			t.Fatalf("expected completed runs, got %q", run.Status)
		}
	}
}

func TestRunRetentionIsolatesPerSubjectFailures(t *testing.T) {
	store := newFakeStore()
	overdueCustomer(store, "cust-1")
	overdueCustomer(store, "cust-2")
	store.anonymizeErr["cust-1"] = fmt.Errorf("row lock timeout")
	svc := newTestService(t, store, nil)

	stats, err := svc.RunRetention(context.Background())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if stats.Processed != 1 || stats.Errors != 1 {
		t.Fatalf("expected one success and one failure, got %+v", stats)
	}
	if store.runs[0].Status != "completed_with_errors" {
		t.Fatalf("expected completed_with_errors, got %q", store.runs[0].Status)
	}

	healthy, _ := store.GetCustomer(context.Background(), "cust-2")
	if healthy.AnonymizedAt == nil {
		t.Fatal("one subject's failure must not skip the rest")
	}
}

func TestRunRetentionSkipsReviewIssues(t *testing.T) {
	store := newFakeStore()
	created := time.Now().Add(-8 * 365 * 24 * time.Hour)
	store.addCustomer(Customer{ID: "cust-1", Email: "x@example.com", CreatedAt: created})
	store.addSnapshot(CustomerSnapshot{CustomerID: "cust-1", CreatedAt: created, PaymentCount: 1})
	svc := newTestService(t, store, nil)

	stats, err := svc.RunRetention(context.Background())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if stats.Processed != 0 || stats.Errors != 0 {
		t.Fatalf("REVIEW issues are for humans, got %+v", stats)
	}
	if store.anonymizeCalls != 0 || store.deleteCalls != 0 {
		t.Fatal("no automated action may run on a REVIEW issue")
	}
}

func TestRunRetentionDeletePreservesRetainedHistory(t *testing.T) {
	store := newFakeStore()
	created := time.Now().Add(-30 * 24 * time.Hour)
	stale := time.Now().Add(-400 * 24 * time.Hour)
	store.addCustomer(Customer{ID: "cust-1", Email: "x@example.com", CreatedAt: created})
	store.addSnapshot(CustomerSnapshot{
		CustomerID:    "cust-1",
		CreatedAt:     created,
		BookingCount:  2,
		LastBookingAt: &created,
		SessionCount:  5,
		LastSessionAt: &stale,
	})
	svc := newTestService(t, store, nil)

	stats, err := svc.RunRetention(context.Background())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("expected the stale-session subject processed, got %+v", stats)
	}

	customer, _ := store.GetCustomer(context.Background(), "cust-1")
	if customer == nil {
		t.Fatal("subject with retained bookings must be anonymized, not purged")
	}
	if customer.AnonymizedAt == nil {
		t.Fatal("expected anonymization in place of a destructive delete")
	}
}

func TestRunRetentionRejectsOverlap(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)

	svc.runMu.Lock()
	defer svc.runMu.Unlock()

	_, err := svc.RunRetention(context.Background())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for an overlapping run, got %v", err)
	}
}

func TestLastRunTracksMostRecentStats(t *testing.T) {
	store := newFakeStore()
	overdueCustomer(store, "cust-1")
	svc := newTestService(t, store, nil)

	if _, ok := svc.LastRun(); ok {
		t.Fatal("no run has executed yet")
	}

	stats, err := svc.RunRetention(context.Background())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	last, ok := svc.LastRun()
	if !ok {
		t.Fatal("expected last run stats after a run")
	}
	if last.Processed != stats.Processed || !last.StartedAt.Equal(stats.StartedAt) {
		t.Fatalf("last run mismatch: %+v vs %+v", last, stats)
	}
}
