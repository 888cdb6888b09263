package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PaymentReader is the slice of the payment service the ledger exposes.
type PaymentReader interface {
	Get(ctx context.Context, ownerID, id string) (*models.Payment, error)
	List(ctx context.Context, ownerID string) ([]*models.Payment, error)
	History(ctx context.Context, id string) ([]*models.PaymentEvent, error)
}

type GRPCServer struct {
	address   string
	payments  PaymentReader
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, ps PaymentReader, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		payments:  ps,
		jwtSecret: []byte(secretKey),
	}
}

// newServer builds the grpc.Server with the ledger and health services
// registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	RegisterLedgerServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(LedgerServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on l until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, l net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", l.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(l); err != nil {
		return err
	}

	return nil
}
