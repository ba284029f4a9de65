package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ApproveRequest drives a pending data subject request to its resolution.
// The pending -> processing transition is a conditional claim: of two
// operators approving concurrently, only the first executes the underlying
// data operation; the second observes ErrConflict and must reload.
// Re-approving a request already in a terminal state is a harmless no-op.
func (s *Service) ApproveRequest(ctx context.Context, requestID string) (*DataSubjectRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return req, nil
	}

	switch req.Kind {
	case RequestKindAccess:
		if err := s.claimOrFail(ctx, req, RequestStatusProcessing, "export in progress"); err != nil {
			return s.resolveClaimFailure(ctx, requestID, err)
		}
		result, _ := s.ExportSubjectData(ctx, req.CustomerID)
		if result.Success {
			err = s.finishRequest(ctx, req, RequestStatusCompleted, "export completed, subject notified")
		} else {
			err = s.finishRequest(ctx, req, RequestStatusProcessing, "export failed: "+result.Detail+"; manual follow-up required")
		}
		if err != nil {
			return nil, err
		}

	case RequestKindErasure:
		if err := s.claimOrFail(ctx, req, RequestStatusProcessing, "erasure in progress"); err != nil {
			return s.resolveClaimFailure(ctx, requestID, err)
		}
		subjectEmail := s.subjectEmail(ctx, req.CustomerID)
		result, _ := s.AnonymizeSubject(ctx, req.CustomerID, true)
		if result.Success {
			s.notifyErasure(ctx, subjectEmail)
			err = s.finishRequest(ctx, req, RequestStatusCompleted, "personal data anonymized, de-identified booking history preserved")
		} else {
			err = s.finishRequest(ctx, req, RequestStatusProcessing, "anonymization failed: "+result.Detail+"; manual follow-up required")
		}
		if err != nil {
			return nil, err
		}

	case RequestKindRectification:
		// The actual edit happens through the normal customer update
		// pathway; approving only records that the request was handled.
		if err := s.claimOrFail(ctx, req, RequestStatusCompleted, "rectification recorded, customer record updated via standard pathway"); err != nil {
			return s.resolveClaimFailure(ctx, requestID, err)
		}

	default:
		if err := s.claimOrFail(ctx, req, RequestStatusProcessing, "not automated, manual processing required"); err != nil {
			return s.resolveClaimFailure(ctx, requestID, err)
		}
	}

	updated, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.metrics.RequestResolved(string(req.Kind), string(updated.Status))
	return updated, nil
}

// RejectRequest moves a pending request to rejected with the operator's
// reason. A blank reason is refused so a request can never be closed without
// an explanation on record.
func (s *Service) RejectRequest(ctx context.Context, requestID, reason string) (*DataSubjectRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("reject request: %w: rejection reason is required", ErrValidation)
	}

	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return req, nil
	}

	if err := s.claimOrFail(ctx, req, RequestStatusRejected, reason); err != nil {
		return s.resolveClaimFailure(ctx, requestID, err)
	}
	updated, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.metrics.RequestResolved(string(req.Kind), string(updated.Status))
	return updated, nil
}

var errClaimLost = fmt.Errorf("request claim lost")

func (s *Service) claimOrFail(ctx context.Context, req *DataSubjectRequest, to RequestStatus, details string) error {
	claimed, err := s.store.ClaimRequest(ctx, req.ID, req.Status, to, details)
	if err != nil {
		return fmt.Errorf("claim request %s: %w: %v", req.ID, ErrStore, err)
	}
	if !claimed {
		return errClaimLost
	}
	return nil
}

// resolveClaimFailure distinguishes a lost race against a terminal resolution
// (no-op) from a lost race against another in-flight operator (conflict).
func (s *Service) resolveClaimFailure(ctx context.Context, requestID string, cause error) (*DataSubjectRequest, error) {
	if cause != errClaimLost {
		return nil, cause
	}
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return req, nil
	}
	return nil, fmt.Errorf("request %s: %w: status changed to %q, reload and retry", requestID, ErrConflict, req.Status)
}

func (s *Service) finishRequest(ctx context.Context, req *DataSubjectRequest, status RequestStatus, details string) error {
	if err := s.store.UpdateRequest(ctx, req.ID, status, details); err != nil {
		return fmt.Errorf("update request %s: %w: %v", req.ID, ErrStore, err)
	}
	return nil
}

func (s *Service) getRequest(ctx context.Context, requestID string) (*DataSubjectRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w: %v", requestID, ErrStore, err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	return req, nil
}

func (s *Service) subjectEmail(ctx context.Context, customerID string) string {
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil || customer == nil {
		return ""
	}
	return customer.Email
}

func (s *Service) notifyErasure(ctx context.Context, email string) {
	if s.sink == nil || email == "" {
		return
	}
	if err := s.sink.ErasureCompleted(ctx, email); err != nil {
		slog.Warn("erasure notification failed", "err", err)
	}
}
