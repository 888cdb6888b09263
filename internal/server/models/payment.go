// Package models defines server-side data models persisted in the database.
package models

import "time"

// PaymentStatus is the lifecycle state of a Payment.
//
//	PENDING -> COMPLETED -> REFUNDED
//	PENDING -> FAILED
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment is a locally tracked charge correlated with a provider intent.
// Amounts are in minor currency units (cents).
type Payment struct {
	ID                string
	UserID            string
	Amount            int64
	Currency          string
	Status            PaymentStatus
	Description       string
	InvoiceNumber     string
	IdempotencyKey    string
	ProviderPaymentID string
	ProviderInvoiceID string
	PaymentMethod     string
	ReceiptURL        string
	RefundAmount      int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentUpdate carries the status a transition moves to and the optional
// fields recorded alongside it. Empty/zero fields leave the column untouched.
type PaymentUpdate struct {
	Status        PaymentStatus
	PaymentMethod string
	ReceiptURL    string
	RefundAmount  int64
}

// Outcome is the result of applying one provider event.
type Outcome string

const (
	// OutcomeApplied means the event moved the payment to a new status.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the payment already reflected the event.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the event type is not tracked.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeRejected means the event implied a forbidden transition.
	OutcomeRejected Outcome = "rejected"
)
