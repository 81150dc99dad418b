package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/patchbay-io/patchbay/internal/vault"
)

var keygenFromPassphrase bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a credential encryption key",
	Long: "Generate a base64 key for PATCHBAY_ENCRYPTION_KEY. With --from-passphrase " +
		"the key is derived from an interactively prompted passphrase instead of " +
		"random bytes; the printed salt must be kept to re-derive the same key.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !keygenFromPassphrase {
			key, err := vault.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		}

		fmt.Fprint(os.Stderr, "Passphrase: ")
		passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		if len(passphrase) == 0 {
			return fmt.Errorf("passphrase must not be empty")
		}

		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
		key := vault.DeriveKey(string(passphrase), salt)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "key: %s\n", base64.StdEncoding.EncodeToString(key))
		fmt.Fprintf(out, "salt: %s\n", base64.StdEncoding.EncodeToString(salt))
		return nil
	},
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenFromPassphrase, "from-passphrase", false, "derive the key from a passphrase")
}
