package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxreply/internal/config"
	"github.com/teemow/inboxreply/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		credentialsFile string
		tokenFile       string
		force           bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize inboxreply to read and send Gmail",
		Long: `Run the Google OAuth consent flow for an installed application.

The command prints a URL. Open it, grant access, and paste the code (or the
whole URL the browser was redirected to). The token is stored in the user
cache directory unless --token-file is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("credentials") {
				if v := os.Getenv("GOOGLE_CREDENTIALS_FILE"); v != "" {
					credentialsFile = v
				}
			}
			if !cmd.Flags().Changed("token-file") {
				if v := os.Getenv("GOOGLE_TOKEN_FILE"); v != "" {
					tokenFile = v
				}
			}

			auth, path, err := newAuthenticator(credentialsFile, tokenFile)
			if err != nil {
				return err
			}
			if auth.HasToken() && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "A token is already stored at %s. Use --force to replace it.\n", path)
				return nil
			}
			return authorize(cmd.Context(), auth, bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), path)
		},
	}

	cmd.Flags().StringVar(&credentialsFile, "credentials", config.DefaultCredentialsFile, "Google OAuth client secrets file. Can also use GOOGLE_CREDENTIALS_FILE env var.")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Where the token is stored (default: user cache dir). Can also use GOOGLE_TOKEN_FILE env var.")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing token")
	return cmd
}

// newAuthenticator returns the authenticator and the resolved token path.
func newAuthenticator(credentialsFile, tokenFile string) (*google.Authenticator, string, error) {
	if tokenFile == "" {
		tokenFile = google.DefaultTokenFile()
	}
	auth, err := google.NewAuthenticator(credentialsFile, google.NewFileTokenStore(tokenFile))
	if err != nil {
		return nil, "", err
	}
	return auth, tokenFile, nil
}

// authorize runs the interactive consent flow, reading the code from in.
func authorize(ctx context.Context, auth *google.Authenticator, in *bufio.Reader, out io.Writer, tokenPath string) error {
	fmt.Fprintln(out, "Open this URL in your browser and grant inboxreply access to Gmail:")
	fmt.Fprintf(out, "\n  %s\n\n", auth.AuthURL())
	fmt.Fprint(out, "Paste the authorization code or the redirect URL: ")

	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}
	if err := auth.Exchange(ctx, line); err != nil {
		return err
	}

	fmt.Fprintf(out, "Token saved to %s\n", tokenPath)
	return nil
}
