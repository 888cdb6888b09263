package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The ledger read API has no generated stubs: requests and responses are
// structpb.Struct values and the service is described by hand below.
const (
	LedgerServiceName = "casevault.ledger.v1.Ledger"

	GetPaymentMethod     = "/" + LedgerServiceName + "/GetPayment"
	ListPaymentsMethod   = "/" + LedgerServiceName + "/ListPayments"
	PaymentHistoryMethod = "/" + LedgerServiceName + "/PaymentHistory"
)

type LedgerServer interface {
	GetPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPayments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PaymentHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ledgerServiceDesc, srv)
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPayment", Handler: unaryHandler(GetPaymentMethod, LedgerServer.GetPayment)},
		{MethodName: "ListPayments", Handler: unaryHandler(ListPaymentsMethod, LedgerServer.ListPayments)},
		{MethodName: "PaymentHistory", Handler: unaryHandler(PaymentHistoryMethod, LedgerServer.PaymentHistory)},
	},
	Streams: []grpc.StreamDesc{},
}

type ledgerMethod func(LedgerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call ledgerMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerClient calls the ledger service over an existing connection.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) GetPayment(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetPaymentMethod, idRequest(id), opts...)
}

func (c *LedgerClient) ListPayments(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListPaymentsMethod, nil, opts...)
}

func (c *LedgerClient) PaymentHistory(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PaymentHistoryMethod, idRequest(id), opts...)
}

func idRequest(id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"id": structpb.NewStringValue(id)}}
}
