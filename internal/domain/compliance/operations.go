package compliance

import (
	"context"
	"fmt"
)

// AnonymizeSubject irreversibly overwrites the customer's identifying fields
// while keeping de-identified booking and payment rows when
// preserveBookingHistory is set. The operation is idempotent: a second call
// on an already-anonymized subject succeeds without touching the store.
func (s *Service) AnonymizeSubject(ctx context.Context, customerID string, preserveBookingHistory bool) (OperationResult, error) {
	release := s.locks.acquire(customerID)
	defer release()
	return s.anonymizeLocked(ctx, customerID, preserveBookingHistory)
}

func (s *Service) anonymizeLocked(ctx context.Context, customerID string, preserveBookingHistory bool) (OperationResult, error) {
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return failure("anonymize", err), fmt.Errorf("anonymize %s: %w: %v", customerID, ErrStore, err)
	}
	if customer == nil {
		return failure("anonymize", ErrNotFound), fmt.Errorf("anonymize %s: %w: customer does not exist", customerID, ErrNotFound)
	}
	if customer.AnonymizedAt != nil {
		return OperationResult{Success: true, Detail: "subject already anonymized"}, nil
	}

	changed, err := s.store.AnonymizeCustomer(ctx, customerID, preserveBookingHistory)
	if err != nil {
		return failure("anonymize", err), fmt.Errorf("anonymize %s: %w: %v", customerID, ErrStore, err)
	}
	if changed {
		s.metrics.SubjectAnonymized()
	}
	return OperationResult{Success: true, Detail: "identifying fields overwritten"}, nil
}

// DeleteSubject removes the customer. With preserveBookingHistory it behaves
// like anonymize, retaining de-identified records the clinic must keep;
// without it the subject and all dependent records are purged. An outstanding
// unpaid payment blocks deletion unless the caller explicitly overrides.
func (s *Service) DeleteSubject(ctx context.Context, customerID string, preserveBookingHistory, overridePaymentGuard bool) (OperationResult, error) {
	release := s.locks.acquire(customerID)
	defer release()

	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return failure("delete", err), fmt.Errorf("delete %s: %w: %v", customerID, ErrStore, err)
	}
	if customer == nil {
		return failure("delete", ErrNotFound), fmt.Errorf("delete %s: %w: customer does not exist", customerID, ErrNotFound)
	}

	if !overridePaymentGuard {
		outstanding, err := s.store.OutstandingPaymentCount(ctx, customerID)
		if err != nil {
			return failure("delete", err), fmt.Errorf("delete %s: %w: %v", customerID, ErrStore, err)
		}
		if outstanding > 0 {
			err := fmt.Errorf("delete %s: %w: %d outstanding payment(s) block deletion", customerID, ErrConflict, outstanding)
			return failure("delete", err), err
		}
	}

	if preserveBookingHistory {
		return s.anonymizeLocked(ctx, customerID, true)
	}

	if err := s.store.DeleteCustomer(ctx, customerID); err != nil {
		return failure("delete", err), fmt.Errorf("delete %s: %w: %v", customerID, ErrStore, err)
	}
	s.metrics.SubjectDeleted()
	return OperationResult{Success: true, Detail: "subject and dependent records deleted"}, nil
}

// ApplyComplianceAction executes an operator-chosen remediation for a single
// subject. REVIEW is not executable: it exists to route a case to a human.
func (s *Service) ApplyComplianceAction(ctx context.Context, customerID string, action Action) (OperationResult, error) {
	switch action {
	case ActionAnonymize:
		return s.AnonymizeSubject(ctx, customerID, true)
	case ActionDelete:
		return s.DeleteSubject(ctx, customerID, false, false)
	case ActionReview:
		err := fmt.Errorf("apply action: %w: REVIEW requires an operator decision, not an automated run", ErrValidation)
		return failure("apply action", err), err
	default:
		err := fmt.Errorf("apply action: %w: unknown action %q", ErrValidation, action)
		return failure("apply action", err), err
	}
}

func failure(operation string, cause error) OperationResult {
	return OperationResult{Detail: operation + " failed: " + cause.Error()}
}
