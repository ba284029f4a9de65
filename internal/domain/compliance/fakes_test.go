package compliance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory StoreAPI mirroring the conditional-update
// semantics of the SQL store.
type fakeStore struct {
	mu sync.Mutex

	requests  map[string]*DataSubjectRequest
	customers map[string]*Customer
	snapshots map[string]*CustomerSnapshot
	unpaid    map[string]int
	exports   map[string]*ExportRecord
	runs      []RetentionRun

	anonymizeErr map[string]error
	deleteErr    map[string]error
	exportErr    error
	beforeClaim  func()

	anonymizeCalls int
	deleteCalls    int
	claimCalls     int
	nextExportID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests:     map[string]*DataSubjectRequest{},
		customers:    map[string]*Customer{},
		snapshots:    map[string]*CustomerSnapshot{},
		unpaid:       map[string]int{},
		exports:      map[string]*ExportRecord{},
		anonymizeErr: map[string]error{},
		deleteErr:    map[string]error{},
	}
}

func (f *fakeStore) addCustomer(c Customer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := c
	f.customers[c.ID] = &stored
}

func (f *fakeStore) addRequest(r DataSubjectRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := r
	f.requests[r.ID] = &stored
}

func (f *fakeStore) addSnapshot(s CustomerSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := s
	f.snapshots[s.CustomerID] = &stored
}

func (f *fakeStore) ListPendingRequests(_ context.Context) ([]DataSubjectRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []DataSubjectRequest
	for _, r := range f.requests {
		if r.Status == RequestStatusPending {
			pending = append(pending, *r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (f *fakeStore) GetRequest(_ context.Context, requestID string) (*DataSubjectRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[requestID]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) ClaimRequest(_ context.Context, requestID string, from, to RequestStatus, details string) (bool, error) {
	if f.beforeClaim != nil {
		f.beforeClaim()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls++
	r, ok := f.requests[requestID]
	if !ok || r.Status != from {
		return false, nil
	}
	f.applyRequestUpdate(r, to, details)
	return true, nil
}

func (f *fakeStore) UpdateRequest(_ context.Context, requestID string, status RequestStatus, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s not found", requestID)
	}
	f.applyRequestUpdate(r, status, details)
	return nil
}

func (f *fakeStore) applyRequestUpdate(r *DataSubjectRequest, status RequestStatus, details string) {
	r.Status = status
	r.Details = details
	r.UpdatedAt = time.Now()
	if status.Terminal() {
		now := time.Now()
		r.CompletedAt = &now
	}
}

func (f *fakeStore) GetCustomer(_ context.Context, customerID string) (*Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[customerID]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) ListRetentionSnapshots(_ context.Context) ([]CustomerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []CustomerSnapshot
	for _, s := range f.snapshots {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func (f *fakeStore) OutstandingPaymentCount(_ context.Context, customerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unpaid[customerID], nil
}

func (f *fakeStore) AnonymizeCustomer(_ context.Context, customerID string, _ bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anonymizeCalls++
	if err := f.anonymizeErr[customerID]; err != nil {
		return false, err
	}
	c, ok := f.customers[customerID]
	if !ok {
		return false, fmt.Errorf("customer %s not found", customerID)
	}
	if c.AnonymizedAt != nil {
		return false, nil
	}
	now := time.Now()
	c.FirstName = "Anonymized"
	c.LastName = "Customer"
	c.Email = fmt.Sprintf("anonymized+%s@example.local", customerID)
	c.Phone = ""
	c.Address = ""
	c.MedicalNotes = ""
	c.LastLoginAt = nil
	c.AnonymizedAt = &now
	if snap, ok := f.snapshots[customerID]; ok {
		snap.Anonymized = true
	}
	return true, nil
}

func (f *fakeStore) DeleteCustomer(_ context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if err := f.deleteErr[customerID]; err != nil {
		return err
	}
	delete(f.customers, customerID)
	delete(f.snapshots, customerID)
	return nil
}

func (f *fakeStore) ExportCustomerData(_ context.Context, customerID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return map[string]any{
		"bookings": []map[string]any{{"customer_id": customerID, "notes": "initial consultation"}},
		"payments": []map[string]any{},
	}, nil
}

func (f *fakeStore) CreateExport(_ context.Context, customerID, filePath, pdfPath, tokenHash string, encrypted bool, expiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextExportID++
	id := fmt.Sprintf("export-%d", f.nextExportID)
	f.exports[id] = &ExportRecord{
		ID:         id,
		CustomerID: customerID,
		FilePath:   filePath,
		PDFPath:    pdfPath,
		TokenHash:  tokenHash,
		Encrypted:  encrypted,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now(),
	}
	return id, nil
}

func (f *fakeStore) ExportDownloadInfo(_ context.Context, exportID string) (*ExportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.exports[exportID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeStore) ClaimExportDownload(_ context.Context, exportID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.exports[exportID]
	if !ok || record.DownloadAt != nil {
		return false, nil
	}
	now := time.Now()
	record.DownloadAt = &now
	return true, nil
}

func (f *fakeStore) RecordRetentionRun(_ context.Context, run RetentionRun) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = fmt.Sprintf("run-%d", len(f.runs)+1)
	f.runs = append(f.runs, run)
	return run.ID, nil
}

func (f *fakeStore) ListRetentionRuns(_ context.Context, limit int) ([]RetentionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RetentionRun, len(f.runs))
	copy(out, f.runs)
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeSink struct {
	mu            sync.Mutex
	exportEmails  []string
	exportURLs    []string
	erasureEmails []string
}

func (f *fakeSink) ExportReady(_ context.Context, email, downloadURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exportEmails = append(f.exportEmails, email)
	f.exportURLs = append(f.exportURLs, downloadURL)
	return nil
}

func (f *fakeSink) ErasureCompleted(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.erasureEmails = append(f.erasureEmails, email)
	return nil
}

func newTestService(t *testing.T, store *fakeStore, sink NotificationSink) *Service {
	t.Helper()
	return NewService(store, DefaultPolicies(), sink, nil, nil, Options{
		ExportDir:       t.TempDir(),
		DownloadBaseURL: "http://localhost:8080/api/v1/compliance",
		ExportTokenTTL:  time.Hour,
	})
}
