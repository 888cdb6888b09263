// Package payments provides the PostgreSQL-backed payment ledger repository.
package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
)

const selectColumns = `id, user_id, amount, currency, status, description, invoice_number, idempotency_key,
	COALESCE(provider_payment_id, ''), COALESCE(provider_invoice_id, ''),
	COALESCE(payment_method, ''), COALESCE(receipt_url, ''), COALESCE(refund_amount, 0),
	created_at, updated_at`

// PostgresRepository implements payment storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Payment) (*models.Payment, bool, error) {
	query := `
		INSERT INTO payments (id, user_id, amount, currency, status, description, invoice_number,
			idempotency_key, provider_payment_id, provider_invoice_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.Amount, p.Currency, string(p.Status), p.Description, p.InvoiceNumber,
		p.IdempotencyKey, nullString(p.ProviderPaymentID), nullString(p.ProviderInvoiceID),
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		var existing *models.Payment
		var getErr error
		switch {
		case p.ProviderPaymentID != "":
			existing, getErr = r.GetByProviderPaymentID(ctx, p.ProviderPaymentID)
		case p.ProviderInvoiceID != "":
			existing, getErr = r.GetByProviderInvoiceID(ctx, p.ProviderInvoiceID)
		default:
			return nil, false, fmt.Errorf("%w: payment %s", common.ErrAlreadyExists, p.ID)
		}
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}
	return p, true, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM payments WHERE provider_payment_id = $1`, providerPaymentID)
}

func (r *PostgresRepository) GetByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM payments WHERE provider_invoice_id = $1`, providerInvoiceID)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Payment, error) {
	query := `SELECT ` + selectColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select payments: %w", err)
	}
	defer rows.Close()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CompareAndSetStatus is the only way a payment's status or refund total
// changes after creation. Concurrent deliveries race on the WHERE clause;
// the loser sees zero rows affected.
func (r *PostgresRepository) CompareAndSetStatus(ctx context.Context, id string, expected models.PaymentStatus, expectedRefund int64, upd models.PaymentUpdate) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1,
			payment_method = COALESCE($2, payment_method),
			receipt_url = COALESCE($3, receipt_url),
			refund_amount = COALESCE($4, refund_amount),
			updated_at = now()
		WHERE id = $5 AND status = $6 AND COALESCE(refund_amount, 0) = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		string(upd.Status), nullString(upd.PaymentMethod), nullString(upd.ReceiptURL), nullInt64(upd.RefundAmount),
		id, string(expected), expectedRefund)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(s scanner) (*models.Payment, error) {
	var p models.Payment
	var status string
	err := s.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &status, &p.Description, &p.InvoiceNumber,
		&p.IdempotencyKey, &p.ProviderPaymentID, &p.ProviderInvoiceID,
		&p.PaymentMethod, &p.ReceiptURL, &p.RefundAmount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
