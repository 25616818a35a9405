package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/camloop/internal/auth"
)

var hashTokenGenerate bool

// hashTokenInput is where the token is read from. It can be overridden in
// tests.
var hashTokenInput = os.Stdin

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token",
	Short: "Hash a bearer token for server.token_hash",
	Long: `Reads a token (hidden when typed in a terminal, otherwise the first line of
stdin) and prints its argon2id hash. Put the hash in server.token_hash and
the token in the skill endpoint's Authorization header.

With --generate a random token is created and printed with its hash.`,
	Args: cobra.NoArgs,
	RunE: runHashToken,
}

func init() {
	hashTokenCmd.Flags().BoolVarP(&hashTokenGenerate, "generate", "g", false, "generate a random token")
	rootCmd.AddCommand(hashTokenCmd)
}

func runHashToken(cmd *cobra.Command, args []string) error {
	var token string
	var err error
	if hashTokenGenerate {
		token, err = auth.GenerateToken()
	} else {
		token, err = auth.ReadToken(hashTokenInput, cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if hashTokenGenerate {
		fmt.Fprintf(out, "token: %s\n", token)
	}
	fmt.Fprintf(out, "token_hash: %q\n", hash)
	return nil
}
