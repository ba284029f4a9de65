package compliance

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/crypto/bcrypt"
)

// ExportSubjectData gathers every record owned by the subject, writes the
// payload (encrypted at rest when a data key is configured) and a PDF
// summary to the export directory, and registers a one-time download token.
// The subject is notified best effort; a notification failure never fails
// the export.
func (s *Service) ExportSubjectData(ctx context.Context, customerID string) (OperationResult, error) {
	release := s.locks.acquire(customerID)
	defer release()

	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return failure("export", err), fmt.Errorf("export %s: %w: %v", customerID, ErrStore, err)
	}
	if customer == nil {
		return failure("export", ErrNotFound), fmt.Errorf("export %s: %w: customer does not exist", customerID, ErrNotFound)
	}

	datasets, err := s.store.ExportCustomerData(ctx, customerID)
	if err != nil {
		return failure("export", err), fmt.Errorf("export %s: %w: %v", customerID, ErrStore, err)
	}
	payload := BuildExportPayload(customer, datasets)

	exportID := uuid.NewString()
	filePath, encrypted, err := s.writeExportPayload(exportID, payload)
	if err != nil {
		return failure("export", err), fmt.Errorf("export %s: %w", customerID, err)
	}
	pdfPath, err := s.writeExportSummary(exportID, customer, datasets)
	if err != nil {
		return failure("export", err), fmt.Errorf("export %s: %w", customerID, err)
	}

	token, err := generateDownloadToken()
	if err != nil {
		return failure("export", err), fmt.Errorf("export %s: %w", customerID, err)
	}
	tokenHash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return failure("export", err), fmt.Errorf("export %s: %w", customerID, err)
	}

	expiresAt := time.Now().Add(s.opts.ExportTokenTTL)
	storedID, err := s.store.CreateExport(ctx, customerID, filePath, pdfPath, string(tokenHash), encrypted, expiresAt)
	if err != nil {
		return failure("export", err), fmt.Errorf("export %s: %w: %v", customerID, ErrStore, err)
	}

	if s.sink != nil && customer.Email != "" {
		url := fmt.Sprintf("%s/exports/%s/download?token=%s", s.opts.DownloadBaseURL, storedID, token)
		if err := s.sink.ExportReady(ctx, customer.Email, url); err != nil {
			slog.Warn("export notification failed", "customerId", customerID, "err", err)
		}
	}

	s.metrics.ExportCompleted()
	return OperationResult{
		Success: true,
		Detail:  "export written, download token issued",
		Payload: payload,
	}, nil
}

// BuildExportPayload assembles the export document from the customer record
// and the per-category datasets.
func BuildExportPayload(customer *Customer, datasets map[string]any) map[string]any {
	payload := map[string]any{
		"customer":    customer,
		"generatedAt": time.Now().UTC(),
	}
	for name, rows := range datasets {
		payload[name] = rows
	}
	return payload
}

// DownloadExport validates the one-time token and returns the decrypted
// payload bytes. The token works exactly once: the download is claimed with
// a conditional update before any bytes are released, so a replayed or
// concurrent request loses. Expired, spent and mismatched tokens all fail
// without revealing whether the export exists.
func (s *Service) DownloadExport(ctx context.Context, exportID, token string) ([]byte, string, error) {
	record, err := s.store.ExportDownloadInfo(ctx, exportID)
	if err != nil {
		return nil, "", fmt.Errorf("download export %s: %w: %v", exportID, ErrStore, err)
	}
	if record == nil {
		return nil, "", fmt.Errorf("download export %s: %w", exportID, ErrNotFound)
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, "", fmt.Errorf("download export %s: %w: download token expired", exportID, ErrNotFound)
	}
	if record.DownloadAt != nil {
		return nil, "", fmt.Errorf("download export %s: %w: token already used", exportID, ErrNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.TokenHash), []byte(token)); err != nil {
		return nil, "", fmt.Errorf("download export %s: %w", exportID, ErrNotFound)
	}

	claimed, err := s.store.ClaimExportDownload(ctx, exportID)
	if err != nil {
		return nil, "", fmt.Errorf("download export %s: %w: %v", exportID, ErrStore, err)
	}
	if !claimed {
		return nil, "", fmt.Errorf("download export %s: %w: token already used", exportID, ErrNotFound)
	}

	data, err := os.ReadFile(record.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("download export %s: %w: %v", exportID, ErrStore, err)
	}
	filename := filepath.Base(record.FilePath)
	if record.Encrypted && s.crypto != nil {
		if data, err = s.crypto.Decrypt(data); err != nil {
			return nil, "", fmt.Errorf("download export %s: %w: %v", exportID, ErrStore, err)
		}
		// The payload goes out decrypted, so the at-rest suffix is wrong.
		filename = strings.TrimSuffix(filename, ".enc")
	}
	return data, filename, nil
}

func (s *Service) writeExportPayload(exportID string, payload map[string]any) (string, bool, error) {
	if err := os.MkdirAll(s.opts.ExportDir, 0o755); err != nil {
		return "", false, err
	}
	jsonBytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", false, err
	}

	filePath := filepath.Join(s.opts.ExportDir, exportID+".json")
	if s.crypto != nil && s.crypto.Configured() {
		enc, err := s.crypto.Encrypt(jsonBytes)
		if err != nil {
			return "", false, err
		}
		filePath += ".enc"
		if err := os.WriteFile(filePath, enc, 0o600); err != nil {
			return "", false, err
		}
		return filePath, true, nil
	}
	if err := os.WriteFile(filePath, jsonBytes, 0o600); err != nil {
		return "", false, err
	}
	return filePath, false, nil
}

func (s *Service) writeExportSummary(exportID string, customer *Customer, datasets map[string]any) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Subject Data Export")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Subject: %s %s", customer.FirstName, customer.LastName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Customer ID: %s", customer.ID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", time.Now().UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		count := 0
		if list, ok := datasets[name].([]map[string]any); ok {
			count = len(list)
		}
		pdf.Cell(0, 8, fmt.Sprintf("%s: %d record(s)", name, count))
		pdf.Ln(7)
	}

	pdfPath := filepath.Join(s.opts.ExportDir, exportID+".pdf")
	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return "", err
	}
	return pdfPath, nil
}

func generateDownloadToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
