package provider

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/stripe/stripe-go/v81/webhook"
)

// errBadSignature is the only thing callers learn about a failed
// signature check.
var errBadSignature = fmt.Errorf("%w: invalid webhook signature", common.ErrAuthentication)

// errMalformedObject keeps decoder details out of the response to a
// correctly signed but unreadable event.
var errMalformedObject = fmt.Errorf("%w: malformed event object", common.ErrValidation)

// StripeWebhook verifies Stripe webhook deliveries.
type StripeWebhook struct {
	secret string
}

func NewStripeWebhook(secret string) (*StripeWebhook, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook secret is empty", common.ErrConfiguration)
	}
	return &StripeWebhook{secret: secret}, nil
}

// the fields read from event.data.object, across the object kinds handled
type eventObject struct {
	ID                 string   `json:"id"`
	PaymentMethodTypes []string `json:"payment_method_types"`
	PaymentIntent      *string  `json:"payment_intent"`
	AmountRefunded     int64    `json:"amount_refunded"`
	HostedInvoiceURL   string   `json:"hosted_invoice_url"`
}

func (w *StripeWebhook) ParseEvent(payload []byte, signatureHeader string) (*models.ProviderEvent, error) {
	if signatureHeader == "" {
		return nil, errBadSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errBadSignature
	}

	pe := &models.ProviderEvent{ID: event.ID, RawType: string(event.Type)}

	if event.Data == nil {
		return pe, nil
	}

	var obj eventObject
	if len(event.Data.Raw) > 0 {
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			return nil, errMalformedObject
		}
	}

	switch event.Type {
	case "payment_intent.succeeded":
		pe.Type = models.EventPaymentSucceeded
		pe.ProviderPaymentID = obj.ID
		if len(obj.PaymentMethodTypes) > 0 {
			pe.PaymentMethod = obj.PaymentMethodTypes[0]
		}
	case "payment_intent.payment_failed":
		pe.Type = models.EventPaymentFailed
		pe.ProviderPaymentID = obj.ID
	case "invoice.payment_succeeded":
		pe.Type = models.EventInvoiceSucceeded
		pe.ProviderInvoiceID = obj.ID
		pe.ReceiptURL = obj.HostedInvoiceURL
	case "charge.refunded":
		pe.Type = models.EventChargeRefunded
		if obj.PaymentIntent != nil {
			pe.ProviderPaymentID = *obj.PaymentIntent
		}
		pe.RefundedAmount = obj.AmountRefunded
	}

	return pe, nil
}
