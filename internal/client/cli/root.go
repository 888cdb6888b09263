// Package cli implements casevaultctl, the operator tool for key material,
// document blobs, credentials and read-only ledger queries.
package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

// NewRootCmd builds the command tree. Settings not given as flags are read
// from the environment, after a .env file in the working directory.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "casevaultctl",
		Short:         "casevault operator tool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	root.AddCommand(keygenCmd())
	root.AddCommand(encryptCmd())
	root.AddCommand(decryptCmd())
	root.AddCommand(hashCmd())
	root.AddCommand(verifyCmd())
	root.AddCommand(ledgerCmd())

	return root
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
