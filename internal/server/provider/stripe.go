package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type customerCreator interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type invoiceItemCreator interface {
	New(params *stripe.InvoiceItemParams) (*stripe.InvoiceItem, error)
}

type invoiceAPI interface {
	New(params *stripe.InvoiceParams) (*stripe.Invoice, error)
	FinalizeInvoice(id string, params *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error)
}

type refundCreator interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// Stripe creates payment intents, invoices and refunds through the Stripe API.
type Stripe struct {
	intents      intentCreator
	customers    customerCreator
	invoiceItems invoiceItemCreator
	invoices     invoiceAPI
	refunds      refundCreator
}

func NewStripe(secretKey string) (*Stripe, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key is empty", common.ErrConfiguration)
	}
	sc := client.New(secretKey, nil)
	return &Stripe{
		intents:      sc.PaymentIntents,
		customers:    sc.Customers,
		invoiceItems: sc.InvoiceItems,
		invoices:     sc.Invoices,
		refunds:      sc.Refunds,
	}, nil
}

func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("userId", req.OwnerID)
	params.AddMetadata("description", req.Description)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CreateInvoice bills a fresh customer for one line item and finalizes the
// invoice. Each step gets its own idempotency key derived from req's, so a
// retried call resumes instead of duplicating customers or line items.
func (s *Stripe) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	cp := &stripe.CustomerParams{
		Email: stripe.String(req.Email),
	}
	if req.Name != "" {
		cp.Name = stripe.String(req.Name)
	}
	cp.Context = ctx
	cp.AddMetadata("userId", req.OwnerID)
	setKey(&cp.Params, req.IdempotencyKey, "customer")

	cust, err := s.customers.New(cp)
	if err != nil {
		return nil, classify(err)
	}

	ip := &stripe.InvoiceParams{
		Customer:    stripe.String(cust.ID),
		AutoAdvance: stripe.Bool(true),
		Description: stripe.String(req.Description),
	}
	ip.Context = ctx
	ip.AddMetadata("userId", req.OwnerID)
	setKey(&ip.Params, req.IdempotencyKey, "invoice")

	draft, err := s.invoices.New(ip)
	if err != nil {
		return nil, classify(err)
	}

	itemParams := &stripe.InvoiceItemParams{
		Customer:    stripe.String(cust.ID),
		Invoice:     stripe.String(draft.ID),
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
	}
	itemParams.Context = ctx
	setKey(&itemParams.Params, req.IdempotencyKey, "item")

	if _, err := s.invoiceItems.New(itemParams); err != nil {
		return nil, classify(err)
	}

	fp := &stripe.InvoiceFinalizeInvoiceParams{}
	fp.Context = ctx
	setKey(&fp.Params, req.IdempotencyKey, "finalize")

	inv, err := s.invoices.FinalizeInvoice(draft.ID, fp)
	if err != nil {
		return nil, classify(err)
	}

	out := &Invoice{ID: inv.ID, HostedURL: inv.HostedInvoiceURL}
	if inv.PaymentIntent != nil {
		out.PaymentIntentID = inv.PaymentIntent.ID
	}
	return out, nil
}

func (s *Stripe) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ProviderPaymentID),
	}
	if req.Amount > 0 {
		params.Amount = stripe.Int64(req.Amount)
	}
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := s.refunds.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return &Refund{ID: r.ID, Amount: r.Amount, Status: string(r.Status)}, nil
}

func setKey(p *stripe.Params, key, step string) {
	if key != "" {
		p.SetIdempotencyKey(key + ":" + step)
	}
}

// classify wraps retryable failures with ErrTransient. Card declines and
// request validation errors are returned as they are.
func classify(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("stripe: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// no API error envelope: the request never got a response
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
