package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	maxWebhookBytes = 64 << 10
	signatureHeader = "Stripe-Signature"
)

// stripeWebhook verifies the delivery before anything else reads it, then
// hands the translated event to the ledger. Duplicate and ignored events are
// acknowledged so the provider stops redelivering them.
func (s *Server) stripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		s.fail(c, "webhook read failed", fmt.Errorf("%w: unreadable body", common.ErrValidation))
		return
	}
	if len(body) > maxWebhookBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	ev, err := s.webhook.ParseEvent(body, c.GetHeader(signatureHeader))
	if err != nil {
		s.fail(c, "webhook rejected", err)
		return
	}

	outcome, err := s.payments.ApplyEvent(ctx, ev)
	if err != nil {
		s.fail(c, "webhook not applied", err)
		return
	}

	if outcome == models.OutcomeIgnored {
		s.logger.Debug(ctx, "webhook ignored", "event_id", ev.ID, "type", ev.RawType)
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
