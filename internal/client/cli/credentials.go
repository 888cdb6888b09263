package cli

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/cryptox"
	"github.com/spf13/cobra"
)

var (
	errMismatch        = errors.New("passwords do not match")
	errCredentialWrong = errors.New("credential does not match")
)

func hashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password into a stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			iterations, _ := cmd.Flags().GetInt("iterations")
			h, err := cryptox.NewHasher(iterations, 0)
			if err != nil {
				return err
			}

			pw, err := promptPassword(cmd, true)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			stored, err := h.Hash(string(pw))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored)
			return nil
		},
	}
	cmd.Flags().Int("iterations", cryptox.DefaultIterations, "PBKDF2 iterations")
	cmd.Flags().Bool("stdin", false, "read the password as a line from stdin")
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <stored-credential>",
		Short: "Check a password against a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iterations, _ := cmd.Flags().GetInt("iterations")
			legacy, _ := cmd.Flags().GetInt("legacy-iterations")
			h, err := cryptox.NewHasher(iterations, legacy)
			if err != nil {
				return err
			}

			pw, err := promptPassword(cmd, false)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			if !h.Verify(string(pw), args[0]) {
				return errCredentialWrong
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().Int("iterations", cryptox.DefaultIterations, "PBKDF2 iterations")
	cmd.Flags().Int("legacy-iterations", cryptox.LegacyIterations, "fallback PBKDF2 iterations, 0 to disable")
	cmd.Flags().Bool("stdin", false, "read the password as a line from stdin")
	return cmd
}

// promptPassword reads from the terminal unless --stdin is set. With
// confirm, an interactive read asks twice.
func promptPassword(cmd *cobra.Command, confirm bool) ([]byte, error) {
	fromStdin, _ := cmd.Flags().GetBool("stdin")
	if fromStdin {
		line, err := GetSimpleText(bufio.NewReader(cmd.InOrStdin()), "Password", cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}

	pw, err := GetPassword("Password", cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if !confirm {
		return pw, nil
	}

	again, err := GetPassword("Repeat password", cmd.ErrOrStderr())
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if subtle.ConstantTimeCompare(pw, again) != 1 {
		common.WipeByteArray(pw)
		return nil, errMismatch
	}
	return pw, nil
}
