package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/client/client"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type ledgerAPI interface {
	GetPayment(ctx context.Context, id string) (*structpb.Struct, error)
	ListPayments(ctx context.Context) (*structpb.Struct, error)
	PaymentHistory(ctx context.Context, id string) (*structpb.Struct, error)
	Close() error
}

// dialLedger is a test seam.
var dialLedger = func(addr, token string) (ledgerAPI, error) {
	return client.NewGRPCClient(addr, token)
}

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Query the payment ledger over gRPC",
	}
	cmd.PersistentFlags().StringP("addr", "a", "", "ledger address (default $CASEVAULT_GRPC_ADDRESS or localhost:50051)")
	cmd.PersistentFlags().StringP("token", "t", "", "access token (default $CASEVAULT_TOKEN)")

	cmd.AddCommand(&cobra.Command{
		Use:   "get <payment-id>",
		Short: "Show one payment",
		Args:  cobra.ExactArgs(1),
		RunE: withLedger(func(ctx context.Context, l ledgerAPI, args []string) (*structpb.Struct, error) {
			return l.GetPayment(ctx, args[0])
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your payments",
		Args:  cobra.NoArgs,
		RunE: withLedger(func(ctx context.Context, l ledgerAPI, args []string) (*structpb.Struct, error) {
			return l.ListPayments(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "history <payment-id>",
		Short: "Show the audit trail of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: withLedger(func(ctx context.Context, l ledgerAPI, args []string) (*structpb.Struct, error) {
			return l.PaymentHistory(ctx, args[0])
		}),
	})

	return cmd
}

func withLedger(call func(context.Context, ledgerAPI, []string) (*structpb.Struct, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = envOr("CASEVAULT_GRPC_ADDRESS", "localhost:50051")
		}
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = envOr("CASEVAULT_TOKEN", "")
		}
		if token == "" {
			return fmt.Errorf("an access token is required (--token or CASEVAULT_TOKEN)")
		}

		l, err := dialLedger(addr, token)
		if err != nil {
			return err
		}
		defer l.Close()

		resp, err := call(cmd.Context(), l, args)
		if err != nil {
			return err
		}

		out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
}
