// Package paymentevents stores the payment audit trail: every applied
// status transition and every provider event rejected for manual review.
package paymentevents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (id, payment_id, provider_event_id, event_type, from_status, to_status, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	paymentID := sql.NullString{String: e.PaymentID, Valid: e.PaymentID != ""}

	err := r.db.QueryRowContext(ctx, query,
		e.ID, paymentID, e.ProviderEventID, e.EventType,
		string(e.FromStatus), string(e.ToStatus), string(e.Outcome), e.Detail,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// QueueForReview appends a rejected event unless one with the same provider
// event id is already queued. It reports whether a row was written.
func (r *PostgresRepository) QueueForReview(ctx context.Context, e *models.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (id, payment_id, provider_event_id, event_type, from_status, to_status, outcome, detail)
		SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text
		WHERE $3::text = '' OR NOT EXISTS (
			SELECT 1 FROM payment_events WHERE provider_event_id = $3::text AND outcome = $7::text
		)
		RETURNING created_at
	`
	paymentID := sql.NullString{String: e.PaymentID, Valid: e.PaymentID != ""}

	err := r.db.QueryRowContext(ctx, query,
		e.ID, paymentID, e.ProviderEventID, e.EventType,
		string(e.FromStatus), string(e.ToStatus), string(models.OutcomeRejected), e.Detail,
	).Scan(&e.CreatedAt)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows), dbx.IsUniqueViolation(err):
		return false, nil
	default:
		return false, fmt.Errorf("db error: %w", err)
	}
}

func (r *PostgresRepository) ListByPayment(ctx context.Context, paymentID string) ([]*models.PaymentEvent, error) {
	query := `
		SELECT id, provider_event_id, event_type, from_status, to_status, outcome, detail, created_at
		FROM payment_events
		WHERE payment_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select payment events: %w", err)
	}
	defer rows.Close()

	var result []*models.PaymentEvent
	for rows.Next() {
		e := &models.PaymentEvent{PaymentID: paymentID}
		var from, to, outcome string
		if err := rows.Scan(&e.ID, &e.ProviderEventID, &e.EventType, &from, &to, &outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FromStatus = models.PaymentStatus(from)
		e.ToStatus = models.PaymentStatus(to)
		e.Outcome = models.Outcome(outcome)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
