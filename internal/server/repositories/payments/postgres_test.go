package payments

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentCols = []string{
	"id", "user_id", "amount", "currency", "status", "description", "invoice_number", "idempotency_key",
	"provider_payment_id", "provider_invoice_id", "payment_method", "receipt_url", "refund_amount",
	"created_at", "updated_at",
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func paymentRow(status models.PaymentStatus, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(paymentCols).AddRow(
		"p1", "u1", int64(15000), "usd", string(status), "Filing fee", "INV-00000001-ABC", "idem-1",
		"pi_1", "", "card", "", int64(0), now, now,
	)
}

func TestCreate_Inserted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO payments .* ON CONFLICT DO NOTHING RETURNING created_at, updated_at`).
		WithArgs("p1", "u1", int64(15000), "usd", "PENDING", "Filing fee", "INV-1", "idem-1", "pi_1", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	p, created, err := repo.Create(context.Background(), &models.Payment{
		ID: "p1", UserID: "u1", Amount: 15000, Currency: "usd", Status: models.PaymentPending,
		Description: "Filing fee", InvoiceNumber: "INV-1", IdempotencyKey: "idem-1", ProviderPaymentID: "pi_1",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, now, p.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ConflictReturnsExisting(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO payments`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))
	mock.ExpectQuery(`FROM payments WHERE provider_payment_id = \$1`).
		WithArgs("pi_1").
		WillReturnRows(paymentRow(models.PaymentPending, now))

	p, created, err := repo.Create(context.Background(), &models.Payment{
		ID: "p2", UserID: "u1", Amount: 15000, Currency: "usd", Status: models.PaymentPending, ProviderPaymentID: "pi_1",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "p1", p.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_InvoiceConflictReturnsExisting(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs("p3", "u1", int64(15000), "usd", "PENDING", "", "", "", nil, "in_1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))
	mock.ExpectQuery(`FROM payments WHERE provider_invoice_id = \$1`).
		WithArgs("in_1").
		WillReturnRows(paymentRow(models.PaymentPending, now))

	p, created, err := repo.Create(context.Background(), &models.Payment{
		ID: "p3", UserID: "u1", Amount: 15000, Currency: "usd", Status: models.PaymentPending, ProviderInvoiceID: "in_1",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "p1", p.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO payments`).WillReturnError(errors.New("db is down"))

	_, _, err := repo.Create(context.Background(), &models.Payment{ID: "p1", ProviderPaymentID: "pi_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is down")
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM payments WHERE id = \$1`).WithArgs("p1").WillReturnRows(paymentRow(models.PaymentCompleted, now))

	p, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	assert.Equal(t, int64(15000), p.Amount)
	assert.Equal(t, "pi_1", p.ProviderPaymentID)
	assert.Equal(t, "card", p.PaymentMethod)
}

func TestGetByProviderInvoiceID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM payments WHERE provider_invoice_id = \$1`).
		WithArgs("in_404").
		WillReturnRows(sqlmock.NewRows(paymentCols))

	_, err := repo.GetByProviderInvoiceID(context.Background(), "in_404")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := paymentRow(models.PaymentPending, now).AddRow(
		"p2", "u1", int64(500), "usd", "REFUNDED", "", "INV-2", "idem-2", "pi_2", "in_2", "", "https://r", int64(500), now, now,
	)
	mock.ExpectQuery(`FROM payments WHERE user_id = \$1 ORDER BY created_at DESC`).WithArgs("u1").WillReturnRows(rows)

	list, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.PaymentRefunded, list[1].Status)
	assert.Equal(t, int64(500), list[1].RefundAmount)
}

func TestCompareAndSetStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
		wantErr  bool
	}{
		{"applied", 1, true, false},
		{"lost race", 0, false, false},
		{"impossible", 2, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(`UPDATE payments SET status = \$1, .* WHERE id = \$5 AND status = \$6 AND COALESCE\(refund_amount, 0\) = \$7`).
				WithArgs("COMPLETED", "card", nil, nil, "p1", "PENDING", int64(0)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.CompareAndSetStatus(context.Background(), "p1", models.PaymentPending, 0,
				models.PaymentUpdate{Status: models.PaymentCompleted, PaymentMethod: "card"})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCompareAndSetStatus_RefundAmount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE payments`).
		WithArgs("REFUNDED", nil, nil, int64(15000), "p1", "COMPLETED", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.CompareAndSetStatus(context.Background(), "p1", models.PaymentCompleted, 0,
		models.PaymentUpdate{Status: models.PaymentRefunded, RefundAmount: 15000})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompareAndSetStatus_RaisesRefundTotal(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE payments`).
		WithArgs("REFUNDED", nil, nil, int64(15000), "p1", "REFUNDED", int64(5000)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.CompareAndSetStatus(context.Background(), "p1", models.PaymentRefunded, 5000,
		models.PaymentUpdate{Status: models.PaymentRefunded, RefundAmount: 15000})
	require.NoError(t, err)
	assert.False(t, ok, "a refund total that moved since the read must not be overwritten")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSetStatus_ExecError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE payments`).WillReturnError(errors.New("conn reset"))

	_, err := repo.CompareAndSetStatus(context.Background(), "p1", models.PaymentPending, 0,
		models.PaymentUpdate{Status: models.PaymentFailed})
	require.Error(t, err)
}
