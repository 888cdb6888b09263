package paymentevents

import (
	"context"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, e *models.PaymentEvent) error
	// QueueForReview stores a rejected event once per provider event id.
	QueueForReview(ctx context.Context, e *models.PaymentEvent) (bool, error)
	ListByPayment(ctx context.Context, paymentID string) ([]*models.PaymentEvent, error)
}
