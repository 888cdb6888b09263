package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/cryptox"
	"github.com/dmitrijs2005/casevault/internal/filex"
	"github.com/dmitrijs2005/casevault/internal/netx"
	"github.com/spf13/cobra"
)

const keyEnv = "ENCRYPTION_KEY"

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh 256-bit encryption key as hex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := common.MakeRandHexString(cryptox.KeySize)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func encryptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt input into a hex blob",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cipherFromFlags(cmd)
			if err != nil {
				return err
			}
			in, err := readInput(cmd)
			if err != nil {
				return err
			}
			blob, err := c.Encrypt(in)
			if err != nil {
				return err
			}
			return writeOutput(cmd, []byte(blob+"\n"))
		},
	}
	addBlobFlags(cmd)
	return cmd
}

func decryptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a hex blob from a file, stdin or a presigned URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cipherFromFlags(cmd)
			if err != nil {
				return err
			}
			var in []byte
			if url, _ := cmd.Flags().GetString("url"); url != "" {
				in, err = netx.FetchPresignedURL(cmd.Context(), url)
			} else {
				in, err = readInput(cmd)
			}
			if err != nil {
				return err
			}
			plain, err := c.Decrypt(strings.TrimSpace(string(in)))
			if err != nil {
				return err
			}
			return writeOutput(cmd, plain)
		},
	}
	addBlobFlags(cmd)
	cmd.Flags().StringP("url", "u", "", "presigned download URL of the stored blob")
	return cmd
}

func addBlobFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("key", "k", "", "hex encryption key (default $"+keyEnv+")")
	cmd.Flags().StringP("in", "i", "", "input file (default stdin)")
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")
}

func cipherFromFlags(cmd *cobra.Command) (*cryptox.Cipher, error) {
	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		key = os.Getenv(keyEnv)
	}
	return cryptox.NewCipherFromHex(key)
}

func readInput(cmd *cobra.Command) ([]byte, error) {
	name, _ := cmd.Flags().GetString("in")
	if name == "" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func writeOutput(cmd *cobra.Command, data []byte) error {
	name, _ := cmd.Flags().GetString("out")
	if name == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return filex.WriteFilePrivate(name, data)
}
