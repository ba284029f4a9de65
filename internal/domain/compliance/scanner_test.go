package compliance

import (
	"testing"
	"time"
)

var scanNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func customerWindow() time.Duration {
	return time.Duration(7*365) * 24 * time.Hour
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestScanBoundaryAgeIsNotOverdue(t *testing.T) {
	snap := CustomerSnapshot{
		CustomerID: "c1",
		CreatedAt:  scanNow.Add(-customerWindow()),
	}

	issues := Scan(scanNow, DefaultPolicies(), []CustomerSnapshot{snap})
	if len(issues) != 0 {
		t.Fatalf("expected no issues at the exact boundary, got %+v", issues)
	}

	snap.CreatedAt = snap.CreatedAt.Add(-25 * time.Hour)
	issues = Scan(scanNow, DefaultPolicies(), []CustomerSnapshot{snap})
	if len(issues) != 1 {
		t.Fatalf("expected one issue past the boundary, got %d", len(issues))
	}
	if issues[0].DaysOverdue != 1 {
		t.Fatalf("expected 1 day overdue, got %d", issues[0].DaysOverdue)
	}
	if issues[0].RecommendedAction != ActionAnonymize {
		t.Fatalf("expected ANONYMIZE, got %s", issues[0].RecommendedAction)
	}
}

func TestScanOverdueDayCount(t *testing.T) {
	snap := CustomerSnapshot{
		CustomerID: "c1",
		CreatedAt:  scanNow.Add(-customerWindow() - 2*24*time.Hour),
	}

	issues := Scan(scanNow, DefaultPolicies(), []CustomerSnapshot{snap})
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %d", len(issues))
	}
	if issues[0].DaysOverdue != 2 {
		t.Fatalf("expected 2 days overdue, got %d", issues[0].DaysOverdue)
	}
	if len(issues[0].Categories) != 1 || issues[0].Categories[0] != CategoryCustomerData {
		t.Fatalf("unexpected categories: %v", issues[0].Categories)
	}
}

func TestScanRecentLoginResetsCustomerDataClock(t *testing.T) {
	snap := CustomerSnapshot{
		CustomerID:  "c1",
		CreatedAt:   scanNow.Add(-customerWindow() - 100*24*time.Hour),
		LastLoginAt: ptrTime(scanNow.Add(-30 * 24 * time.Hour)),
	}

	issues := Scan(scanNow, DefaultPolicies(), []CustomerSnapshot{snap})
	if len(issues) != 0 {
		t.Fatalf("recent login should keep the customer in retention, got %+v", issues)
	}
}

func TestScanHardDeleteCategoryWins(t *testing.T) {
	// Session logs are 400 days stale against a 365 day window; customer
	// data is also overdue. The hard-deletable category decides the action.
	snap := CustomerSnapshot{
		CustomerID:    "c1",
		CreatedAt:     scanNow.Add(-customerWindow() - 10*24*time.Hour),
		SessionCount:  3,
		LastSessionAt: ptrTime(scanNow.Add(-400 * 24 * time.Hour)),
	}

	issues := Scan(scanNow, DefaultPolicies(), []CustomerSnapshot{snap})
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %d", len(issues))
	}
	if issues[0].RecommendedAction != ActionDelete {
		t.Fatalf("expected DELETE, got %s", issues[0].RecommendedAction)
	}
	if got := len(issues[0].Categories); got != 2 {
		t.Fatalf("expected 2 categories, got %v", issues[0].Categories)
	}
}

func TestScanMissingTimestampForcesReview(t *testing.T) {
	snap := CustomerSnapshot{
		CustomerID:   "c1",
		CreatedAt:    scanNow.Add(-8 * 365 * 24 * time.Hour),
		PaymentCount: 2,
		// Payment rows exist but no payment date survived.
	}

	issues := Scan(scanNow, DefaultPolicies(), []CustomerSnapshot{snap})
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %d", len(issues))
	}
	if issues[0].RecommendedAction != ActionReview {
		t.Fatalf("expected REVIEW for a missing timestamp, got %s", issues[0].RecommendedAction)
	}
	if issues[0].DaysOverdue < 1 {
		t.Fatalf("overdue issues carry at least one day, got %d", issues[0].DaysOverdue)
	}
}

func TestScanMissingTimestampOnYoungAccountIsClean(t *testing.T) {
	snap := CustomerSnapshot{
		CustomerID:   "c1",
		CreatedAt:    scanNow.Add(-30 * 24 * time.Hour),
		PaymentCount: 1,
	}

	issues := Scan(scanNow, DefaultPolicies(), []CustomerSnapshot{snap})
	if len(issues) != 0 {
		t.Fatalf("young account with missing timestamp should not be flagged, got %+v", issues)
	}
}

func TestScanSkipsAnonymizedCustomers(t *testing.T) {
	snap := CustomerSnapshot{
		CustomerID: "c1",
		CreatedAt:  scanNow.Add(-20 * 365 * 24 * time.Hour),
		Anonymized: true,
	}

	issues := Scan(scanNow, DefaultPolicies(), []CustomerSnapshot{snap})
	if len(issues) != 0 {
		t.Fatalf("anonymized customers must be excluded, got %+v", issues)
	}
}

func TestScanResultIsDeterministicallyOrdered(t *testing.T) {
	old := scanNow.Add(-customerWindow() - 10*24*time.Hour)
	snaps := []CustomerSnapshot{
		{CustomerID: "zzz", CreatedAt: old},
		{CustomerID: "aaa", CreatedAt: old},
		{CustomerID: "mmm", CreatedAt: old},
	}

	for i := 0; i < 3; i++ {
		issues := Scan(scanNow, DefaultPolicies(), snaps)
		if len(issues) != 3 {
			t.Fatalf("expected 3 issues, got %d", len(issues))
		}
		if issues[0].CustomerID != "aaa" || issues[1].CustomerID != "mmm" || issues[2].CustomerID != "zzz" {
			t.Fatalf("issues not ordered by customer id: %+v", issues)
		}
	}
}
