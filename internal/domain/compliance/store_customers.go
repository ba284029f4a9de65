package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var c Customer
	err := s.DB.QueryRow(ctx, `
    SELECT id, first_name, last_name, email,
           COALESCE(phone, ''), COALESCE(address, ''),
           COALESCE(medical_notes, ''),
           COALESCE(emergency_contact_name, ''), COALESCE(emergency_contact_phone, ''),
           created_at, last_login_at, anonymized_at, updated_at
    FROM customers
    WHERE id = $1
  `, customerID).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email,
		&c.Phone, &c.Address,
		&c.MedicalNotes,
		&c.EmergencyContactName, &c.EmergencyContactPhone,
		&c.CreatedAt, &c.LastLoginAt, &c.AnonymizedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListRetentionSnapshots(ctx context.Context) ([]CustomerSnapshot, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT c.id, c.created_at, c.last_login_at, c.anonymized_at IS NOT NULL,
           (SELECT COUNT(1) FROM bookings b WHERE b.customer_id = c.id),
           (SELECT MAX(b.completed_at) FROM bookings b WHERE b.customer_id = c.id),
           (SELECT COUNT(1) FROM payments p WHERE p.customer_id = c.id),
           (SELECT MAX(p.paid_at) FROM payments p WHERE p.customer_id = c.id),
           (SELECT COUNT(1) FROM consents m WHERE m.customer_id = c.id),
           (SELECT MAX(GREATEST(m.granted_at, COALESCE(m.withdrawn_at, m.granted_at))) FROM consents m WHERE m.customer_id = c.id),
           (SELECT COUNT(1) FROM session_logs l WHERE l.customer_id = c.id),
           (SELECT MAX(l.created_at) FROM session_logs l WHERE l.customer_id = c.id)
    FROM customers c
    ORDER BY c.id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []CustomerSnapshot
	for rows.Next() {
		var snap CustomerSnapshot
		if err := rows.Scan(
			&snap.CustomerID, &snap.CreatedAt, &snap.LastLoginAt, &snap.Anonymized,
			&snap.BookingCount, &snap.LastBookingAt,
			&snap.PaymentCount, &snap.LastPaymentAt,
			&snap.ConsentCount, &snap.LastConsentAt,
			&snap.SessionCount, &snap.LastSessionAt,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (s *Store) OutstandingPaymentCount(ctx context.Context, customerID string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM payments
    WHERE customer_id = $1 AND paid_at IS NULL
  `, customerID).Scan(&count)
	return count, err
}

// AnonymizeCustomer overwrites identifying fields in a single transaction so
// readers never observe a partially anonymized subject. Session logs and
// consent records are purged outright since they only exist to identify the
// subject; bookings and payments are kept de-identified unless
// preserveBookingHistory is false.
func (s *Store) AnonymizeCustomer(ctx context.Context, customerID string, preserveBookingHistory bool) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var alreadyDone bool
	if err := tx.QueryRow(ctx, `
    SELECT anonymized_at IS NOT NULL
    FROM customers
    WHERE id = $1
    FOR UPDATE
  `, customerID).Scan(&alreadyDone); err != nil {
		return false, err
	}
	if alreadyDone {
		return false, nil
	}

	anonEmail := fmt.Sprintf("anonymized+%s@example.local", customerID)
	if _, err := tx.Exec(ctx, `
    UPDATE customers
    SET first_name = 'Anonymized',
        last_name = 'Customer',
        email = $1,
        phone = NULL,
        address = NULL,
        medical_notes = NULL,
        emergency_contact_name = NULL,
        emergency_contact_phone = NULL,
        last_login_at = NULL,
        anonymized_at = now(),
        updated_at = now()
    WHERE id = $2
  `, anonEmail, customerID); err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx, `
    UPDATE bookings
    SET notes = NULL
    WHERE customer_id = $1
  `, customerID); err != nil {
		return false, err
	}

	if !preserveBookingHistory {
		if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE customer_id = $1`, customerID); err != nil {
			return false, err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE customer_id = $1`, customerID); err != nil {
			return false, err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM session_logs WHERE customer_id = $1`, customerID); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM consents WHERE customer_id = $1`, customerID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteCustomer purges the subject and every dependent record except data
// subject requests, which are themselves compliance records and are never
// deleted.
func (s *Store) DeleteCustomer(ctx context.Context, customerID string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	queries := []string{
		`DELETE FROM session_logs WHERE customer_id = $1`,
		`DELETE FROM consents WHERE customer_id = $1`,
		`DELETE FROM payments WHERE customer_id = $1`,
		`DELETE FROM bookings WHERE customer_id = $1`,
		`DELETE FROM data_exports WHERE customer_id = $1`,
		`DELETE FROM customers WHERE id = $1`,
	}
	for _, q := range queries {
		if _, err := tx.Exec(ctx, q, customerID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ExportCustomerData(ctx context.Context, customerID string) (map[string]any, error) {
	datasets := map[string]string{
		"bookings":    `SELECT row_to_json(b) FROM bookings b WHERE b.customer_id = $1`,
		"payments":    `SELECT row_to_json(p) FROM payments p WHERE p.customer_id = $1`,
		"consents":    `SELECT row_to_json(m) FROM consents m WHERE m.customer_id = $1`,
		"sessionLogs": `SELECT row_to_json(l) FROM session_logs l WHERE l.customer_id = $1`,
		"requests":    `SELECT row_to_json(r) FROM data_subject_requests r WHERE r.customer_id = $1`,
	}
	out := make(map[string]any, len(datasets))
	for name, query := range datasets {
		rows, err := s.queryRowsAsJSON(ctx, query, customerID)
		if err != nil {
			return nil, err
		}
		out[name] = rows
	}
	return out, nil
}

func (s *Store) queryRowsAsJSON(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var rowJSON []byte
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, err
		}
		var row map[string]any
		if err := json.Unmarshal(rowJSON, &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
