package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
	"github.com/Ratio1/dropbox_sdk_go/pkg/oauth2"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		offline   bool
		noBrowser bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain an access token with the authorization code flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(false); err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			key, err := promptDefault(in, out, "App key", a.cfg.AppKey)
			if err != nil {
				return err
			}
			secret, err := promptDefault(in, out, "App secret", a.cfg.AppSecret)
			if err != nil {
				return err
			}
			conf := &oauth2.Config{ClientID: key, ClientSecret: secret, OfflineAccess: offline}

			authURL := conf.AuthorizeURL(uuid.NewString())
			fmt.Fprintf(out, "1. Go to: %s\n", authURL)
			fmt.Fprintln(out, `2. Click "Allow" (you might have to log in first).`)
			fmt.Fprintln(out, "3. Copy the authorization code.")
			if !noBrowser {
				if err := browser.OpenURL(authURL); err != nil {
					a.log.Debug("could not open browser", "error", err)
				}
			}

			code, err := promptDefault(in, out, "Enter the authorization code here", "")
			if err != nil {
				return err
			}
			client := dropbox.NewNoAuthClient(a.cfg.clientOptions(a.log)...)
			token, err := conf.ExchangeCode(cmd.Context(), client, code)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "export DBX_OAUTH_TOKEN=%s\n", token.AccessToken)
			if token.RefreshToken != "" {
				fmt.Fprintf(out, "# refresh token: %s\n", token.RefreshToken)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "also request a refresh token")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "only print the authorization URL")
	return cmd
}

// promptDefault reads one line. A non-empty def is returned without asking.
func promptDefault(in *bufio.Reader, out io.Writer, label, def string) (string, error) {
	if def != "" {
		return def, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}
