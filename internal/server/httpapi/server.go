// Package httpapi exposes casevault over HTTP: payment intents, invoices
// and refunds, the provider webhook, document upload and download, and
// account sign-in.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/provider"
	"github.com/dmitrijs2005/casevault/internal/server/services"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type PaymentService interface {
	CreateIntent(ctx context.Context, ownerID string, amount int64, description, idempotencyKey string) (*models.Payment, string, error)
	CreateInvoice(ctx context.Context, ownerID string, amount int64, description, idempotencyKey string) (*models.Payment, string, error)
	Refund(ctx context.Context, requesterID, paymentID string, amount int64, reason string) (*provider.Refund, error)
	Get(ctx context.Context, ownerID, id string) (*models.Payment, error)
	List(ctx context.Context, ownerID string) ([]*models.Payment, error)
	ApplyEvent(ctx context.Context, ev *models.ProviderEvent) (models.Outcome, error)
}

type DocumentService interface {
	Upload(ctx context.Context, req services.UploadRequest) (*models.Document, error)
	List(ctx context.Context, ownerID string) ([]*models.Document, error)
	Open(ctx context.Context, ownerID, id string) (*models.Document, []byte, error)
	PresignedURL(ctx context.Context, ownerID, id string) (string, error)
}

type UserService interface {
	Register(ctx context.Context, email, name, phone, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

// Options configures the router. Health may be nil.
type Options struct {
	Payments  PaymentService
	Documents DocumentService
	Users     UserService
	Webhook   provider.WebhookVerifier
	Logger    logging.Logger

	JWTSecret      []byte
	MaxUploadBytes int64
	RateLimit      rate.Limit
	RateBurst      int
	Health         func(context.Context) error
}

type Server struct {
	address string
	router  *gin.Engine
	logger  logging.Logger

	payments  PaymentService
	documents DocumentService
	users     UserService
	webhook   provider.WebhookVerifier

	jwtSecret      []byte
	maxUploadBytes int64
	health         func(context.Context) error
}

func NewServer(address string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	s := &Server{
		address:        address,
		router:         gin.New(),
		logger:         logger.With("module", "http_server"),
		payments:       opts.Payments,
		documents:      opts.Documents,
		users:          opts.Users,
		webhook:        opts.Webhook,
		jwtSecret:      opts.JWTSecret,
		maxUploadBytes: opts.MaxUploadBytes,
		health:         opts.Health,
	}

	s.router.Use(gin.Recovery(), s.requestLogger())
	if opts.RateLimit > 0 {
		s.router.Use(rateLimit(newMultiLimiter(opts.RateLimit, opts.RateBurst, 10*time.Minute)))
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.healthz)

	api := s.router.Group("/api")
	api.POST("/webhooks/stripe", s.stripeWebhook)
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)

	authed := api.Group("", s.requireUser())
	authed.POST("/payments", s.createPayment)
	authed.GET("/payments", s.listPayments)
	authed.GET("/payments/:id", s.getPayment)
	authed.POST("/payments/:id/refund", s.refundPayment)
	authed.POST("/invoices", s.createInvoice)
	authed.POST("/documents", s.uploadDocument)
	authed.GET("/documents", s.listDocuments)
	authed.GET("/documents/:id/content", s.documentContent)
	authed.GET("/documents/:id/url", s.documentURL)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			s.logger.Error(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
