package payments

import (
	"context"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type Repository interface {
	// Create inserts p. When a row with the same provider payment id already
	// exists it is returned instead and created is false.
	Create(ctx context.Context, p *models.Payment) (payment *models.Payment, created bool, err error)
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	GetByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*models.Payment, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.Payment, error)

	// CompareAndSetStatus applies upd only if the row's status and refund
	// total are still the expected ones. It reports whether the row changed.
	CompareAndSetStatus(ctx context.Context, id string, expected models.PaymentStatus, expectedRefund int64, upd models.PaymentUpdate) (bool, error)
}
