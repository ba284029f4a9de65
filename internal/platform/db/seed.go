package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Seed inserts a small demo dataset for development: a handful of customers
// with bookings and payments, plus pending subject requests to exercise the
// compliance console. It is a no-op when customers already exist.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM customers").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	customers := []struct {
		firstName, lastName, email string
		createdAgo                 time.Duration
	}{
		{"Maja", "Lindqvist", "maja.lindqvist@example.com", 30 * 24 * time.Hour},
		{"Tomas", "Berg", "tomas.berg@example.com", 400 * 24 * time.Hour},
		{"Rosa", "Alvarez", "rosa.alvarez@example.com", (7*365 + 40) * 24 * time.Hour},
	}

	for _, c := range customers {
		created := now.Add(-c.createdAgo)
		var id string
		if err := pool.QueryRow(ctx, `
      INSERT INTO customers (first_name, last_name, email, phone, created_at, updated_at)
      VALUES ($1,$2,$3,$4,$5,$5)
      RETURNING id
    `, c.firstName, c.lastName, c.email, "+46 70 000 00 00", created).Scan(&id); err != nil {
			return err
		}

		if _, err := pool.Exec(ctx, `
      INSERT INTO bookings (customer_id, starts_at, completed_at, notes)
      VALUES ($1, $2, $2, 'initial consultation')
    `, id, created.Add(7*24*time.Hour)); err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, `
      INSERT INTO payments (customer_id, amount_cents, paid_at)
      VALUES ($1, 45000, $2)
    `, id, created.Add(7*24*time.Hour)); err != nil {
			return err
		}
	}

	var subjectID string
	if err := pool.QueryRow(ctx, `SELECT id FROM customers ORDER BY created_at LIMIT 1`).Scan(&subjectID); err != nil {
		return err
	}
	for _, kind := range []string{"access", "erasure"} {
		if _, err := pool.Exec(ctx, `
      INSERT INTO data_subject_requests (customer_id, kind, status, submitted_at, updated_at)
      VALUES ($1, $2, 'pending', now(), now())
    `, subjectID, kind); err != nil {
			return err
		}
	}
	return nil
}
