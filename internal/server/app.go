// Package server wires configuration, storage, the payment provider and the
// services together and runs the HTTP and gRPC servers until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/casevault/internal/cryptox"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/config"
	gs "github.com/dmitrijs2005/casevault/internal/server/grpc"
	"github.com/dmitrijs2005/casevault/internal/server/httpapi"
	"github.com/dmitrijs2005/casevault/internal/server/provider"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/casevault/internal/server/services"
	"github.com/dmitrijs2005/casevault/internal/server/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type App struct {
	config          *config.Config
	logger          logging.Logger
	db              *sql.DB
	webhook         provider.WebhookVerifier
	paymentService  *services.PaymentService
	documentService *services.DocumentService
	userService     *services.UserService
}

// openDB is a seam for tests.
var openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// NewApp validates c and builds every dependency. Key material is checked
// before anything touches the network, so a bad key fails fast with
// common.ErrConfiguration.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cipher, err := cryptox.NewCipherFromHex(c.EncryptionKey)
	if err != nil {
		return nil, err
	}
	hasher, err := cryptox.NewHasher(c.CredentialIterations, c.LegacyCredentialIterations)
	if err != nil {
		return nil, err
	}
	stripe, err := provider.NewStripe(c.ProviderSecretKey)
	if err != nil {
		return nil, err
	}
	webhook, err := provider.NewStripeWebhook(c.WebhookSecret)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewS3BlobStore(ctx, storage.S3Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, err
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	us, err := services.NewUserService(db, rm, hasher, c, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		config:          c,
		logger:          logger,
		db:              db,
		webhook:         webhook,
		paymentService:  services.NewPaymentService(db, rm, stripe, c, logger),
		documentService: services.NewDocumentService(db, rm, cipher, blobs, c, logger),
		userService:     us,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpServer() *httpapi.Server {
	return httpapi.NewServer(app.config.EndpointAddrHTTP, httpapi.Options{
		Payments:       app.paymentService,
		Documents:      app.documentService,
		Users:          app.userService,
		Webhook:        app.webhook,
		Logger:         app.logger,
		JWTSecret:      []byte(app.config.SecretKey),
		MaxUploadBytes: app.config.MaxUploadBytes,
		RateLimit:      rate.Limit(app.config.RateLimitPerSecond),
		RateBurst:      app.config.RateLimitBurst,
		Health:         app.db.PingContext,
	})
}

// Run serves HTTP and gRPC until a signal arrives or either server fails,
// then closes the database.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.httpServer().Run(gctx)
	})

	g.Go(func() error {
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.paymentService, app.config.SecretKey).Run(gctx)
	})

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "db close error", "error", cerr)
	}
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
