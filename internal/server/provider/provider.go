// Package provider talks to the external payment provider: it creates
// payment intents, invoices and refunds, and turns signed webhook
// deliveries into provider-neutral events.
package provider

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

// ErrTransient marks provider failures worth retrying with the same
// idempotency key: network errors, rate limiting and 5xx responses.
var ErrTransient = errors.New("transient provider error")

// IntentRequest describes a payment intent to create. Amount is in minor
// units.
type IntentRequest struct {
	Amount         int64
	Currency       string
	Description    string
	OwnerID        string
	IdempotencyKey string
}

// Intent is the provider's answer to IntentRequest.
type Intent struct {
	ID           string
	ClientSecret string
}

// InvoiceRequest describes a one-line invoice billed to a new provider
// customer. Amount is in minor units.
type InvoiceRequest struct {
	Amount         int64
	Currency       string
	Description    string
	OwnerID        string
	Email          string
	Name           string
	IdempotencyKey string
}

// Invoice is a finalized provider invoice. PaymentIntentID is empty when
// the provider has not attached an intent yet.
type Invoice struct {
	ID              string
	PaymentIntentID string
	HostedURL       string
}

// RefundRequest asks for money back on a payment intent. A zero Amount
// refunds whatever is left.
type RefundRequest struct {
	ProviderPaymentID string
	Amount            int64
	Reason            string
	IdempotencyKey    string
}

type Refund struct {
	ID     string
	Amount int64
	Status string
}

type PaymentProvider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
}

type WebhookVerifier interface {
	// ParseEvent checks the signature over payload before looking at it.
	// Any signature problem yields common.ErrAuthentication.
	ParseEvent(payload []byte, signatureHeader string) (*models.ProviderEvent, error)
}
