package compliance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ListPendingRequests(ctx context.Context) ([]DataSubjectRequest, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, customer_id, kind, status, submitted_at, completed_at, COALESCE(details, ''), updated_at
    FROM data_subject_requests
    WHERE status = $1
    ORDER BY submitted_at DESC
  `, RequestStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []DataSubjectRequest
	for rows.Next() {
		var req DataSubjectRequest
		if err := rows.Scan(&req.ID, &req.CustomerID, &req.Kind, &req.Status, &req.SubmittedAt, &req.CompletedAt, &req.Details, &req.UpdatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (*DataSubjectRequest, error) {
	var req DataSubjectRequest
	err := s.DB.QueryRow(ctx, `
    SELECT id, customer_id, kind, status, submitted_at, completed_at, COALESCE(details, ''), updated_at
    FROM data_subject_requests
    WHERE id = $1
  `, requestID).Scan(&req.ID, &req.CustomerID, &req.Kind, &req.Status, &req.SubmittedAt, &req.CompletedAt, &req.Details, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ClaimRequest applies the transition only while the request still holds the
// expected prior status. The completion timestamp is set exactly when the new
// status is terminal; updated_at is always refreshed.
func (s *Store) ClaimRequest(ctx context.Context, requestID string, from, to RequestStatus, details string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE data_subject_requests
    SET status = $3,
        details = $4,
        completed_at = CASE WHEN $3 IN ('completed', 'rejected') THEN now() ELSE completed_at END,
        updated_at = now()
    WHERE id = $1 AND status = $2
  `, requestID, from, to, details)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UpdateRequest(ctx context.Context, requestID string, status RequestStatus, details string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE data_subject_requests
    SET status = $2,
        details = $3,
        completed_at = CASE WHEN $2 IN ('completed', 'rejected') THEN now() ELSE completed_at END,
        updated_at = now()
    WHERE id = $1
  `, requestID, status, details)
	return err
}

func (s *Store) RecordRetentionRun(ctx context.Context, run RetentionRun) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO retention_runs (processed, errors, status, started_at, completed_at)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, run.Processed, run.Errors, run.Status, run.StartedAt, run.CompletedAt).Scan(&id)
	return id, err
}

func (s *Store) ListRetentionRuns(ctx context.Context, limit int) ([]RetentionRun, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, processed, errors, status, started_at, completed_at
    FROM retention_runs
    ORDER BY started_at DESC
    LIMIT $1
  `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RetentionRun
	for rows.Next() {
		var run RetentionRun
		if err := rows.Scan(&run.ID, &run.Processed, &run.Errors, &run.Status, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) CreateExport(ctx context.Context, customerID, filePath, pdfPath, tokenHash string, encrypted bool, expiresAt time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO data_exports (customer_id, file_path, pdf_path, token_hash, encrypted, expires_at)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, customerID, filePath, pdfPath, tokenHash, encrypted, expiresAt).Scan(&id)
	return id, err
}

func (s *Store) ExportDownloadInfo(ctx context.Context, exportID string) (*ExportRecord, error) {
	var record ExportRecord
	err := s.DB.QueryRow(ctx, `
    SELECT id, customer_id, file_path, pdf_path, token_hash, encrypted, expires_at, created_at, downloaded_at
    FROM data_exports
    WHERE id = $1
  `, exportID).Scan(&record.ID, &record.CustomerID, &record.FilePath, &record.PDFPath, &record.TokenHash, &record.Encrypted, &record.ExpiresAt, &record.CreatedAt, &record.DownloadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) ClaimExportDownload(ctx context.Context, exportID string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE data_exports
    SET downloaded_at = now()
    WHERE id = $1 AND downloaded_at IS NULL
  `, exportID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
