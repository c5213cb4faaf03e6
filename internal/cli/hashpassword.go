package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/mcpgate/internal/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password for the users file",
	Long: `Prompts for a password and prints its argon2id hash, suitable for
pasting into the users file:

  alice: $argon2id$v=19$m=65536,t=3,p=4$...`,
	RunE: runHashPassword,
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, err := auth.PromptPassword("Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	confirm, err := auth.PromptPassword("Confirm: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Println(hash)
	return nil
}
