package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/config"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/provider"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	defaultPaymentDescription = "Immigration service payment"

	// maxApplyAttempts bounds how often one event is re-evaluated after
	// losing a compare-and-set to a concurrent delivery.
	maxApplyAttempts = 3

	// txRetries bounds re-runs of a transition aborted by a serialization
	// failure or deadlock.
	txRetries = 2
)

// PaymentService creates payment intents and reconciles the local ledger
// with provider events.
type PaymentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provider    provider.PaymentProvider
	logger      logging.Logger

	currency        string
	providerTimeout time.Duration
	maxRetries      uint64
	retryBase       time.Duration
}

func NewPaymentService(db *sql.DB, m repomanager.RepositoryManager, p provider.PaymentProvider, cfg *config.Config, logger logging.Logger) *PaymentService {
	retries := cfg.ProviderMaxRetries
	if retries < 0 {
		retries = 0
	}
	return &PaymentService{
		db:              db,
		repomanager:     m,
		provider:        p,
		logger:          logger.With("module", "payments"),
		currency:        strings.ToLower(cfg.Currency),
		providerTimeout: cfg.ProviderTimeout,
		maxRetries:      uint64(retries),
		retryBase:       200 * time.Millisecond,
	}
}

// CreateIntent asks the provider for a payment intent and records a PENDING
// payment correlated with it. amount is in minor units.
//
// The same idempotency key is sent on every attempt, so retries (ours on
// transient errors, or the caller's with the same key) never create a second
// provider-side intent. When the key is empty a fresh one is generated.
func (s *PaymentService) CreateIntent(ctx context.Context, ownerID string, amount int64, description, idempotencyKey string) (*models.Payment, string, error) {
	if amount <= 0 {
		return nil, "", fmt.Errorf("%w: amount must be positive", common.ErrValidation)
	}
	if ownerID == "" {
		return nil, "", fmt.Errorf("%w: owner is required", common.ErrValidation)
	}
	if strings.TrimSpace(description) == "" {
		description = defaultPaymentDescription
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	req := provider.IntentRequest{
		Amount:      amount,
		Currency:    s.currency,
		Description: description,
		OwnerID:     ownerID,
		// provider keys are account-wide; scope them to the owner
		IdempotencyKey: ownerID + ":" + idempotencyKey,
	}

	intent, err := s.createIntentWithRetry(ctx, req)
	if err != nil {
		s.logger.Error(ctx, "payment intent creation failed", "owner_id", ownerID, "kind", common.Kind(err), "error", err)
		return nil, "", err
	}

	payment := &models.Payment{
		ID:                uuid.NewString(),
		UserID:            ownerID,
		Amount:            amount,
		Currency:          s.currency,
		Status:            models.PaymentPending,
		Description:       description,
		InvoiceNumber:     generateInvoiceNumber(time.Now()),
		IdempotencyKey:    idempotencyKey,
		ProviderPaymentID: intent.ID,
	}

	stored, created, err := s.repomanager.Payments(s.db).Create(ctx, payment)
	if err != nil {
		err = fmt.Errorf("%w: record payment for intent %s: %v", common.ErrPersistence, intent.ID, err)
		s.logger.Error(ctx, "orphaned provider intent", "provider_payment_id", intent.ID, "owner_id", ownerID, "kind", common.Kind(err), "error", err)
		return nil, "", err
	}
	if !created {
		s.logger.Info(ctx, "payment intent replayed", "payment_id", stored.ID, "provider_payment_id", intent.ID)
	} else {
		s.logger.Info(ctx, "payment created", "payment_id", stored.ID, "provider_payment_id", intent.ID, "amount", amount)
	}

	return stored, intent.ClientSecret, nil
}

func (s *PaymentService) createIntentWithRetry(ctx context.Context, req provider.IntentRequest) (*provider.Intent, error) {
	intent, err := withProviderRetry(ctx, s, func(ctx context.Context) (*provider.Intent, error) {
		return s.provider.CreateIntent(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("create provider intent: %w", err)
	}
	return intent, nil
}

// withProviderRetry runs call with a per-attempt timeout, retrying only
// failures the provider marks as transient.
func withProviderRetry[T any](ctx context.Context, s *PaymentService, call func(context.Context) (T, error)) (T, error) {
	var out T

	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		callCtx := ctx
		if s.providerTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.providerTimeout)
			defer cancel()
		}

		v, err := call(callCtx)
		if err != nil {
			if errors.Is(err, provider.ErrTransient) {
				s.logger.Warn(ctx, "provider call failed, retrying", "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// CreateInvoice bills the owner through a finalized provider invoice and
// records a PENDING payment correlated with the invoice id, so the
// provider's invoice-paid event can settle it. It returns the payment and
// the hosted invoice URL.
func (s *PaymentService) CreateInvoice(ctx context.Context, ownerID string, amount int64, description, idempotencyKey string) (*models.Payment, string, error) {
	if amount <= 0 {
		return nil, "", fmt.Errorf("%w: amount must be positive", common.ErrValidation)
	}
	if ownerID == "" {
		return nil, "", fmt.Errorf("%w: owner is required", common.ErrValidation)
	}
	if strings.TrimSpace(description) == "" {
		description = defaultPaymentDescription
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	owner, err := s.repomanager.Users(s.db).GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", fmt.Errorf("%w: unknown owner %s", common.ErrorUnauthorized, ownerID)
		}
		return nil, "", fmt.Errorf("%w: load owner: %v", common.ErrPersistence, err)
	}

	req := provider.InvoiceRequest{
		Amount:         amount,
		Currency:       s.currency,
		Description:    description,
		OwnerID:        ownerID,
		Email:          owner.Email,
		Name:           owner.Name,
		IdempotencyKey: ownerID + ":" + idempotencyKey,
	}

	inv, err := withProviderRetry(ctx, s, func(ctx context.Context) (*provider.Invoice, error) {
		return s.provider.CreateInvoice(ctx, req)
	})
	if err != nil {
		err = fmt.Errorf("create provider invoice: %w", err)
		s.logger.Error(ctx, "invoice creation failed", "owner_id", ownerID, "kind", common.Kind(err), "error", err)
		return nil, "", err
	}

	payment := &models.Payment{
		ID:                uuid.NewString(),
		UserID:            ownerID,
		Amount:            amount,
		Currency:          s.currency,
		Status:            models.PaymentPending,
		Description:       description,
		InvoiceNumber:     generateInvoiceNumber(time.Now()),
		IdempotencyKey:    idempotencyKey,
		ProviderPaymentID: inv.PaymentIntentID,
		ProviderInvoiceID: inv.ID,
	}

	stored, created, err := s.repomanager.Payments(s.db).Create(ctx, payment)
	if err != nil {
		err = fmt.Errorf("%w: record payment for invoice %s: %v", common.ErrPersistence, inv.ID, err)
		s.logger.Error(ctx, "orphaned provider invoice", "provider_invoice_id", inv.ID, "owner_id", ownerID, "kind", common.Kind(err), "error", err)
		return nil, "", err
	}
	if created {
		s.logger.Info(ctx, "invoice created", "payment_id", stored.ID, "provider_invoice_id", inv.ID, "amount", amount)
	} else {
		s.logger.Info(ctx, "invoice replayed", "payment_id", stored.ID, "provider_invoice_id", inv.ID)
	}

	return stored, inv.HostedURL, nil
}

var refundReasons = map[string]bool{
	"":                      true,
	"duplicate":             true,
	"fraudulent":            true,
	"requested_by_customer": true,
}

// Refund asks the provider to return amount (minor units, 0 for the rest
// of the payment) to the customer. Only admins may refund. The ledger is
// not touched here: the provider's refund event moves the payment.
func (s *PaymentService) Refund(ctx context.Context, requesterID, paymentID string, amount int64, reason string) (*provider.Refund, error) {
	requester, err := s.repomanager.Users(s.db).GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown user %s", common.ErrorUnauthorized, requesterID)
		}
		return nil, fmt.Errorf("%w: load user: %v", common.ErrPersistence, err)
	}
	if requester.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: refunds need an admin", common.ErrForbidden)
	}
	if !refundReasons[reason] {
		return nil, fmt.Errorf("%w: unknown refund reason %q", common.ErrValidation, reason)
	}

	if _, err := uuid.Parse(paymentID); err != nil {
		return nil, common.ErrorNotFound
	}
	p, err := s.repomanager.Payments(s.db).GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if p.Status != models.PaymentCompleted && p.Status != models.PaymentRefunded {
		return nil, fmt.Errorf("%w: payment %s is %s and cannot be refunded", common.ErrValidation, p.ID, p.Status)
	}
	if p.ProviderPaymentID == "" {
		return nil, fmt.Errorf("%w: payment %s has no provider charge", common.ErrValidation, p.ID)
	}
	remaining := p.Amount - p.RefundAmount
	if remaining <= 0 {
		return nil, fmt.Errorf("%w: payment %s is fully refunded", common.ErrValidation, p.ID)
	}
	if amount < 0 || amount > remaining {
		return nil, fmt.Errorf("%w: refund must be between 1 and %d", common.ErrValidation, remaining)
	}
	if amount == 0 {
		amount = remaining
	}

	req := provider.RefundRequest{
		ProviderPaymentID: p.ProviderPaymentID,
		Amount:            amount,
		Reason:            reason,
		// the same refund against the same refunded total is sent once
		IdempotencyKey: fmt.Sprintf("refund:%s:%d:%d", p.ID, p.RefundAmount, amount),
	}

	r, err := withProviderRetry(ctx, s, func(ctx context.Context) (*provider.Refund, error) {
		return s.provider.CreateRefund(ctx, req)
	})
	if err != nil {
		err = fmt.Errorf("create provider refund: %w", err)
		s.logger.Error(ctx, "refund failed", "payment_id", p.ID, "kind", common.Kind(err), "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "refund requested", "payment_id", p.ID, "refund_id", r.ID, "amount", r.Amount, "requested_by", requesterID)
	return r, nil
}

// Get returns the payment if it belongs to ownerID. Someone else's payment
// is reported as not found.
func (s *PaymentService) Get(ctx context.Context, ownerID, id string) (*models.Payment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	p, err := s.repomanager.Payments(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != ownerID {
		return nil, common.ErrorNotFound
	}
	return p, nil
}

// List returns the owner's payments, newest first.
func (s *PaymentService) List(ctx context.Context, ownerID string) ([]*models.Payment, error) {
	return s.repomanager.Payments(s.db).ListByOwner(ctx, ownerID)
}

// History returns the audit trail of one payment.
func (s *PaymentService) History(ctx context.Context, id string) ([]*models.PaymentEvent, error) {
	return s.repomanager.PaymentEvents(s.db).ListByPayment(ctx, id)
}

// ApplyEvent reconciles one provider event with the ledger.
//
// The payment is re-read before every decision and moved with a
// compare-and-set on its status, so concurrent or repeated deliveries of
// the same event converge on a single transition. Events that imply a
// forbidden transition, or that match no payment, are recorded for manual
// review and returned as common.ErrReconciliation.
func (s *PaymentService) ApplyEvent(ctx context.Context, ev *models.ProviderEvent) (models.Outcome, error) {
	log := s.logger.With("event_id", ev.ID, "event_type", ev.RawType)

	switch ev.Type {
	case models.EventPaymentSucceeded, models.EventPaymentFailed, models.EventInvoiceSucceeded, models.EventChargeRefunded:
	default:
		log.Debug(ctx, "event ignored")
		return models.OutcomeIgnored, nil
	}

	ref := ev.ProviderPaymentID
	if ev.Type == models.EventInvoiceSucceeded {
		ref = ev.ProviderInvoiceID
	}
	if ref == "" {
		if ev.Type == models.EventChargeRefunded {
			// charges made outside a payment intent are not ours
			log.Debug(ctx, "refund without payment intent ignored")
			return models.OutcomeIgnored, nil
		}
		err := fmt.Errorf("%w: event carries no correlation id", common.ErrReconciliation)
		s.reject(ctx, log, nil, ev, err)
		return models.OutcomeRejected, err
	}

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		p, err := s.lookup(ctx, ev.Type, ref)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				err = fmt.Errorf("%w: no payment for %s: %w", common.ErrReconciliation, ref, common.ErrorNotFound)
				s.reject(ctx, log, nil, ev, err)
				return models.OutcomeRejected, err
			}
			err = fmt.Errorf("%w: load payment %s: %v", common.ErrPersistence, ref, err)
			log.Error(ctx, "payment lookup failed", "kind", common.Kind(err), "error", err)
			return "", err
		}

		upd, err := decide(p, ev)
		if err != nil {
			s.reject(ctx, log, p, ev, err)
			return models.OutcomeRejected, err
		}
		if upd == nil {
			if ev.Type == models.EventChargeRefunded && ev.RefundedAmount < p.RefundAmount {
				log.Warn(ctx, "stale refund total ignored", "payment_id", p.ID,
					"recorded", p.RefundAmount, "received", ev.RefundedAmount)
			}
			log.Info(ctx, "event already applied", "payment_id", p.ID, "status", p.Status)
			return models.OutcomeDuplicate, nil
		}

		applied, err := s.transition(ctx, p, ev, *upd)
		if err != nil {
			log.Error(ctx, "payment transition failed", "payment_id", p.ID, "kind", common.Kind(err), "error", err)
			return "", err
		}
		if applied {
			log.Info(ctx, "payment transitioned", "payment_id", p.ID, "from", p.Status, "to", upd.Status)
			return models.OutcomeApplied, nil
		}

		log.Debug(ctx, "payment changed concurrently, re-evaluating", "payment_id", p.ID, "attempt", attempt+1)
	}

	err := fmt.Errorf("%w: payment %s kept changing under event %s", common.ErrPersistence, ref, ev.ID)
	log.Error(ctx, "giving up on event", "kind", common.Kind(err), "error", err)
	return "", err
}

func (s *PaymentService) lookup(ctx context.Context, t models.EventType, ref string) (*models.Payment, error) {
	repo := s.repomanager.Payments(s.db)
	if t == models.EventInvoiceSucceeded {
		return repo.GetByProviderInvoiceID(ctx, ref)
	}
	return repo.GetByProviderPaymentID(ctx, ref)
}

// decide returns the update ev implies for p, nil when p already reflects
// ev, or a reconciliation error when the transition is not permitted.
func decide(p *models.Payment, ev *models.ProviderEvent) (*models.PaymentUpdate, error) {
	forbidden := func() error {
		return fmt.Errorf("%w: %s not allowed for payment %s in status %s",
			common.ErrReconciliation, ev.Type, p.ID, p.Status)
	}

	switch ev.Type {
	case models.EventPaymentSucceeded, models.EventInvoiceSucceeded:
		switch p.Status {
		case models.PaymentPending:
			return &models.PaymentUpdate{
				Status:        models.PaymentCompleted,
				PaymentMethod: ev.PaymentMethod,
				ReceiptURL:    ev.ReceiptURL,
			}, nil
		case models.PaymentCompleted, models.PaymentRefunded:
			return nil, nil
		default:
			return nil, forbidden()
		}

	case models.EventPaymentFailed:
		switch p.Status {
		case models.PaymentPending:
			return &models.PaymentUpdate{Status: models.PaymentFailed}, nil
		case models.PaymentFailed:
			return nil, nil
		default:
			return nil, forbidden()
		}

	case models.EventChargeRefunded:
		switch p.Status {
		case models.PaymentCompleted:
			if ev.RefundedAmount <= 0 {
				return nil, fmt.Errorf("%w: refund of %d for payment %s is not positive",
					common.ErrReconciliation, ev.RefundedAmount, p.ID)
			}
			if ev.RefundedAmount > p.Amount {
				return nil, fmt.Errorf("%w: refund of %d exceeds amount %d of payment %s",
					common.ErrReconciliation, ev.RefundedAmount, p.Amount, p.ID)
			}
			return &models.PaymentUpdate{Status: models.PaymentRefunded, RefundAmount: ev.RefundedAmount}, nil
		case models.PaymentRefunded:
			// amount_refunded is cumulative; a smaller or equal total is a redelivery
			if ev.RefundedAmount <= p.RefundAmount {
				return nil, nil
			}
			if ev.RefundedAmount > p.Amount {
				return nil, fmt.Errorf("%w: refund of %d exceeds amount %d of payment %s",
					common.ErrReconciliation, ev.RefundedAmount, p.Amount, p.ID)
			}
			return &models.PaymentUpdate{Status: models.PaymentRefunded, RefundAmount: ev.RefundedAmount}, nil
		default:
			return nil, forbidden()
		}
	}

	return nil, forbidden()
}

// transition applies upd with a compare-and-set on p's status and refund
// total and appends the audit row in the same transaction. It reports
// false, with nothing written, when p changed since it was read.
func (s *PaymentService) transition(ctx context.Context, p *models.Payment, ev *models.ProviderEvent, upd models.PaymentUpdate) (bool, error) {
	var applied bool

	var detail string
	if upd.RefundAmount > 0 {
		detail = fmt.Sprintf("refund_amount=%d", upd.RefundAmount)
	}

	err := dbx.WithRetryTx(ctx, s.db, nil, txRetries, func(ctx context.Context, tx dbx.DBTX) error {
		applied = false
		ok, err := s.repomanager.Payments(tx).CompareAndSetStatus(ctx, p.ID, p.Status, p.RefundAmount, upd)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true

		return s.repomanager.PaymentEvents(tx).Append(ctx, &models.PaymentEvent{
			ID:              uuid.NewString(),
			PaymentID:       p.ID,
			ProviderEventID: ev.ID,
			EventType:       string(ev.Type),
			FromStatus:      p.Status,
			ToStatus:        upd.Status,
			Outcome:         models.OutcomeApplied,
			Detail:          detail,
		})
	})
	if err != nil {
		return false, fmt.Errorf("%w: transition payment %s: %v", common.ErrPersistence, p.ID, err)
	}
	return applied, nil
}

// reject logs a reconciliation failure with its kind and queues it for
// manual review, once per provider event. A failure to write the review
// row is logged only: the reconciliation error is what the caller needs to
// see.
func (s *PaymentService) reject(ctx context.Context, log logging.Logger, p *models.Payment, ev *models.ProviderEvent, cause error) {
	pe := &models.PaymentEvent{
		ID:              uuid.NewString(),
		ProviderEventID: ev.ID,
		EventType:       string(ev.Type),
		Outcome:         models.OutcomeRejected,
		Detail:          cause.Error(),
	}
	args := []any{"kind", common.Kind(cause), "error", cause}
	if p != nil {
		pe.PaymentID = p.ID
		pe.FromStatus = p.Status
		args = append(args, "payment_id", p.ID, "status", p.Status)
	}
	log.Error(ctx, "provider event rejected", args...)

	queued, err := s.repomanager.PaymentEvents(s.db).QueueForReview(ctx, pe)
	if err != nil {
		log.Error(ctx, "failed to queue rejected event for review", "kind", "persistence", "error", err)
		return
	}
	if !queued {
		log.Debug(ctx, "rejected event already queued for review")
	}
}

const invoiceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateInvoiceNumber returns INV-<last 8 digits of unix millis>-<3 chars>.
func generateInvoiceNumber(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	var suffix [3]byte
	for i := range suffix {
		suffix[i] = invoiceAlphabet[rand.IntN(len(invoiceAlphabet))]
	}
	return "INV-" + ms + "-" + string(suffix[:])
}
