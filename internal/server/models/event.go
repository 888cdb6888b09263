package models

import "time"

// EventType is the provider-neutral kind of an inbound payment event.
type EventType string

const (
	EventPaymentSucceeded EventType = "payment_succeeded"
	EventPaymentFailed    EventType = "payment_failed"
	EventInvoiceSucceeded EventType = "invoice_succeeded"
	EventChargeRefunded   EventType = "charge_refunded"
)

// ProviderEvent is a verified webhook notification translated out of the
// provider's vocabulary. It is never persisted as-is.
type ProviderEvent struct {
	// ID is the provider's event id, kept for the audit trail.
	ID   string
	Type EventType
	// RawType is the provider's own type tag, useful when Type is unknown.
	RawType string

	ProviderPaymentID string
	ProviderInvoiceID string

	PaymentMethod  string
	ReceiptURL     string
	RefundedAmount int64
}

// PaymentEvent is one row of the payment audit trail: either an applied
// transition or a rejected event awaiting manual review.
type PaymentEvent struct {
	ID              string
	PaymentID       string // empty when no payment matched
	ProviderEventID string
	EventType       string
	FromStatus      PaymentStatus
	ToStatus        PaymentStatus
	Outcome         Outcome
	Detail          string
	CreatedAt       time.Time
}
