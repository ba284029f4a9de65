package compliance

import (
	"context"
	"testing"
	"time"
)

// A customer created seven years and two days ago with no activity since is
// flagged two days overdue; once anonymized the scanner drops them.
func TestOverdueCustomerDisappearsAfterAnonymization(t *testing.T) {
	store := newFakeStore()
	created := time.Now().Add(-(7*365 + 2) * 24 * time.Hour)
	store.addCustomer(Customer{ID: "cust-1", Email: "x@example.com", CreatedAt: created})
	store.addSnapshot(CustomerSnapshot{CustomerID: "cust-1", CreatedAt: created})
	svc := newTestService(t, store, nil)

	issues, err := svc.ListComplianceIssues(context.Background())
	if err != nil {
		t.Fatalf("list issues error: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %d", len(issues))
	}
	if issues[0].DaysOverdue != 2 || issues[0].RecommendedAction != ActionAnonymize {
		t.Fatalf("expected 2 days overdue with ANONYMIZE, got %+v", issues[0])
	}

	result, err := svc.ApplyComplianceAction(context.Background(), "cust-1", ActionAnonymize)
	if err != nil {
		t.Fatalf("apply action error: %v", err)
	}
	if !result.Success {
		t.Fatalf("anonymize failed: %s", result.Detail)
	}

	issues, err = svc.ListComplianceIssues(context.Background())
	if err != nil {
		t.Fatalf("list issues error: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("anonymized customer must no longer be flagged, got %+v", issues)
	}
}

// Erasure of a subject with an unresolved invoice goes down the anonymize
// path, which is not blocked by the payment guard, and completes.
func TestErasureWithUnresolvedInvoiceCompletesViaAnonymization(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	store.addCustomer(Customer{ID: "cust-1", Email: "tomas@example.com", CreatedAt: time.Now()})
	store.unpaid["cust-1"] = 1
	store.addRequest(pendingRequest("req-1", "cust-1", RequestKindErasure))
	svc := newTestService(t, store, sink)

	updated, err := svc.ApproveRequest(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if updated.Status != RequestStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.Details != "personal data anonymized, de-identified booking history preserved" {
		t.Fatalf("detail must confirm anonymization, got %q", updated.Details)
	}

	customer, _ := store.GetCustomer(context.Background(), "cust-1")
	if customer == nil {
		t.Fatal("subject must survive erasure as a de-identified record")
	}
	if customer.AnonymizedAt == nil {
		t.Fatal("subject must be anonymized")
	}
	if store.deleteCalls != 0 {
		t.Fatal("erasure with history preserved must never hard delete")
	}
}
