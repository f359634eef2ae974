package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"mailbridge/internal/secrets"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "API token for the HTTP server",
	}
	token := &cobra.Command{
		Use:   "token",
		Short: "Manage the bearer token stored in the keyring",
	}
	token.AddCommand(newAuthTokenSetCmd())
	token.AddCommand(newAuthTokenGenerateCmd())
	token.AddCommand(newAuthTokenDeleteCmd())
	cmd.AddCommand(token)
	cmd.AddCommand(newAuthStatusCmd())
	return cmd
}

func newAuthTokenSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [token]",
		Short: "Store a token; prompts when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				var err error
				if token, err = readToken(cmd); err != nil {
					return err
				}
			}
			if err := secrets.SetToken(token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token stored in keyring.")
			return nil
		},
	}
	return cmd
}

// readToken prompts without echo on a terminal and reads one line otherwise.
func readToken(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Token: ")
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newAuthTokenGenerateCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random token, store it and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := secrets.GenerateToken()
			if err != nil {
				return err
			}
			if err := secrets.SetToken(token); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintln(cmd.ErrOrStderr(), "Token stored in keyring. Clients send it as: Authorization: Bearer <token>")
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the token")

	return cmd
}

func newAuthTokenDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the token from the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.DeleteToken(); err != nil {
				if errors.Is(err, secrets.ErrSecretNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No token stored.")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token removed.")
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the server token comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, err := secrets.ResolveKeyringBackendInfo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Keyring backend: %s (%s)\n", backend.Value, backend.Source)
			switch {
			case cfg.TokenSource != "":
				fmt.Fprintf(out, "Token: set (%s)\n", cfg.TokenSource)
			case cfg.Server.InsecureNoAuth:
				fmt.Fprintln(out, "Token: not set; server runs without authentication")
			default:
				fmt.Fprintln(out, "Token: not set; run `mailbridge auth token generate`")
			}
			return nil
		},
	}
}
