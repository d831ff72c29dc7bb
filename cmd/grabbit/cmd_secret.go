package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"grabbit/internal/secrets"
)

// secretCmd manages sealed credentials
var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the sealed account credential",
}

var secretEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Seal the account password into ciphertext",
	Long: `Reads the account password from the terminal with echo disabled,
seals it under the local keystore key, and prints the ciphertext.

Put the ciphertext in the config file (secret_ciphertext) or the
GRABBIT_SECRET_CIPHERTEXT environment variable. The plaintext is never
written to disk; decryption happens only at the login prompt.`,
	RunE: encryptSecret,
}

func init() {
	secretCmd.AddCommand(secretEncryptCmd)
}

func encryptSecret(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("stdin is not a terminal; refusing to read the password")
	}

	fmt.Fprint(os.Stderr, "Account password: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	defer wipe(secret)
	if len(secret) == 0 {
		return fmt.Errorf("password is empty")
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	defer wipe(confirm)
	if !bytes.Equal(secret, confirm) {
		return fmt.Errorf("passwords do not match")
	}

	keystore, err := openKeystore()
	if err != nil {
		return fmt.Errorf("failed to open keystore: %w", err)
	}
	ciphertext, err := secrets.NewVault(keystore).Seal(secret)
	if err != nil {
		return fmt.Errorf("failed to seal password: %w", err)
	}

	fmt.Println(ciphertext)
	return nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
