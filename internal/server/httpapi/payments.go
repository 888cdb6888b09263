package httpapi

import (
	"fmt"
	"math"
	"net/http"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/gin-gonic/gin"
)

// maxAmount caps a single intent, in major units.
const maxAmount = 1_000_000

const idempotencyHeader = "Idempotency-Key"

type createPaymentRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type refundRequest struct {
	// nil refunds whatever is left
	Amount *float64 `json:"amount"`
	Reason string   `json:"reason"`
}

// majorToMinor converts a client amount to cents, rejecting values that
// cannot be charged.
func majorToMinor(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", common.ErrValidation)
	}
	if v > maxAmount {
		return 0, fmt.Errorf("%w: amount exceeds %d", common.ErrValidation, maxAmount)
	}
	cents := int64(math.Round(v * 100))
	if cents <= 0 {
		return 0, fmt.Errorf("%w: amount must be at least 0.01", common.ErrValidation)
	}
	return cents, nil
}

func (s *Server) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, "bad payment request", fmt.Errorf("%w: malformed body", common.ErrValidation))
		return
	}
	amount, err := majorToMinor(req.Amount)
	if err != nil {
		s.fail(c, "bad payment request", err)
		return
	}

	p, clientSecret, err := s.payments.CreateIntent(c.Request.Context(), currentUser(c), amount, req.Description, c.GetHeader(idempotencyHeader))
	if err != nil {
		s.fail(c, "create payment intent failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clientSecret": clientSecret,
		"paymentId":    p.ID,
		"payment":      toPaymentResponse(p),
	})
}

func (s *Server) listPayments(c *gin.Context) {
	ps, err := s.payments.List(c.Request.Context(), currentUser(c))
	if err != nil {
		s.fail(c, "list payments failed", err)
		return
	}
	out := make([]paymentResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPaymentResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

func (s *Server) getPayment(c *gin.Context) {
	p, err := s.payments.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		s.fail(c, "get payment failed", err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(p))
}

func (s *Server) createInvoice(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, "bad invoice request", fmt.Errorf("%w: malformed body", common.ErrValidation))
		return
	}
	amount, err := majorToMinor(req.Amount)
	if err != nil {
		s.fail(c, "bad invoice request", err)
		return
	}

	p, hostedURL, err := s.payments.CreateInvoice(c.Request.Context(), currentUser(c), amount, req.Description, c.GetHeader(idempotencyHeader))
	if err != nil {
		s.fail(c, "create invoice failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paymentId":        p.ID,
		"invoiceId":        p.ProviderInvoiceID,
		"hostedInvoiceUrl": hostedURL,
		"payment":          toPaymentResponse(p),
	})
}

func (s *Server) refundPayment(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, "bad refund request", fmt.Errorf("%w: malformed body", common.ErrValidation))
		return
	}
	var amount int64
	if req.Amount != nil {
		var err error
		if amount, err = majorToMinor(*req.Amount); err != nil {
			s.fail(c, "bad refund request", err)
			return
		}
	}

	r, err := s.payments.Refund(c.Request.Context(), currentUser(c), c.Param("id"), amount, req.Reason)
	if err != nil {
		s.fail(c, "refund failed", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"refundId": r.ID,
		"amount":   minorToMajor(r.Amount),
		"status":   r.Status,
	})
}
