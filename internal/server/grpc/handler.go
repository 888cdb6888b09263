package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) GetPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.ownPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.encode(ctx, paymentFields(p))
}

func (s *GRPCServer) ListPayments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	ps, err := s.payments.List(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, "list payments", err)
	}

	items := make([]any, 0, len(ps))
	for _, p := range ps {
		items = append(items, paymentFields(p))
	}
	return s.encode(ctx, map[string]any{"payments": items})
}

// PaymentHistory returns the audit trail of one of the caller's payments,
// oldest first.
func (s *GRPCServer) PaymentHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.ownPayment(ctx, req)
	if err != nil {
		return nil, err
	}

	events, err := s.payments.History(ctx, p.ID)
	if err != nil {
		return nil, s.toStatus(ctx, "payment history", err)
	}

	items := make([]any, 0, len(events))
	for _, e := range events {
		items = append(items, map[string]any{
			"provider_event_id": e.ProviderEventID,
			"event_type":        e.EventType,
			"from_status":       string(e.FromStatus),
			"to_status":         string(e.ToStatus),
			"outcome":           string(e.Outcome),
			"detail":            e.Detail,
			"created_at":        e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return s.encode(ctx, map[string]any{"payment_id": p.ID, "events": items})
}

func (s *GRPCServer) ownPayment(ctx context.Context, req *structpb.Struct) (*models.Payment, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	p, err := s.payments.Get(ctx, userID, id)
	if err != nil {
		return nil, s.toStatus(ctx, "get payment", err)
	}
	return p, nil
}

// paymentFields renders a payment; amounts stay in minor units.
func paymentFields(p *models.Payment) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"amount":         p.Amount,
		"currency":       p.Currency,
		"status":         string(p.Status),
		"description":    p.Description,
		"invoice_number": p.InvoiceNumber,
		"payment_method": p.PaymentMethod,
		"receipt_url":    p.ReceiptURL,
		"refund_amount":  p.RefundAmount,
		"created_at":     p.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":     p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *GRPCServer) encode(ctx context.Context, m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		s.logger.Error(ctx, "encode response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrReconciliation):
		return status.Error(codes.FailedPrecondition, "payment could not be reconciled")
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "unauthorized")
	}
	s.logger.Error(ctx, op+" failed", "kind", common.Kind(err), "error", err)
	return status.Error(codes.Internal, "internal error")
}
