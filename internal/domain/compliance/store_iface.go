package compliance

import (
	"context"
	"time"
)

type StoreAPI interface {
	ListPendingRequests(ctx context.Context) ([]DataSubjectRequest, error)
	GetRequest(ctx context.Context, requestID string) (*DataSubjectRequest, error)
	// ClaimRequest performs the conditional status transition: the update
	// applies only while the request is still in the expected prior status,
	// so concurrent operators cannot both claim the same request.
	ClaimRequest(ctx context.Context, requestID string, from, to RequestStatus, details string) (bool, error)
	UpdateRequest(ctx context.Context, requestID string, status RequestStatus, details string) error

	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	ListRetentionSnapshots(ctx context.Context) ([]CustomerSnapshot, error)
	OutstandingPaymentCount(ctx context.Context, customerID string) (int, error)
	// AnonymizeCustomer overwrites identifying fields in one transaction and
	// stamps anonymized_at. Returns false when the customer was already
	// anonymized and nothing changed.
	AnonymizeCustomer(ctx context.Context, customerID string, preserveBookingHistory bool) (bool, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	ExportCustomerData(ctx context.Context, customerID string) (map[string]any, error)

	CreateExport(ctx context.Context, customerID, filePath, pdfPath, tokenHash string, encrypted bool, expiresAt time.Time) (string, error)
	ExportDownloadInfo(ctx context.Context, exportID string) (*ExportRecord, error)
	// ClaimExportDownload stamps downloaded_at at most once. Returns false
	// when the export was already downloaded, so of two concurrent requests
	// with a valid token only one receives the payload.
	ClaimExportDownload(ctx context.Context, exportID string) (bool, error)

	RecordRetentionRun(ctx context.Context, run RetentionRun) (string, error)
	ListRetentionRuns(ctx context.Context, limit int) ([]RetentionRun, error)
}

// NotificationSink notifies the data subject after a completed export or
// erasure. Delivery is best effort; a sink failure never fails the operation.
type NotificationSink interface {
	ExportReady(ctx context.Context, email, downloadURL string) error
	ErasureCompleted(ctx context.Context, email string) error
}
