package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/blackmichael/fedivuln/internal/mastodon"
	"github.com/spf13/cobra"
)

func newRegisterCmd(a *app) *cobra.Command {
	var push bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the application on the instance and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			clientPath, userPath := cfg.Credentials(push)
			if push && (cfg.MastodonClientCredPush == "" || cfg.MastodonUserCredPush == "") {
				return errors.New("--push requires mastodon_clientcred_push and mastodon_usercred_push")
			}

			creds, err := mastodon.NewClient(cfg.APIBaseURL, "").RegisterApp(ctx, cfg.AppName, cfg.Scopes, mastodon.OutOfBandRedirect)
			if err != nil {
				return err
			}
			if err := creds.Save(clientPath); err != nil {
				return err
			}
			a.logger.Info("application registered", "app", cfg.AppName, "credentials", clientPath)

			conf := mastodon.OAuthConfig(creds, cfg.Scopes)
			fmt.Fprintln(out, "Go to this URL to authorize:", mastodon.AuthorizationURL(conf))
			fmt.Fprint(out, "Enter the code you got after authorization: ")

			code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && strings.TrimSpace(code) == "" {
				return fmt.Errorf("read authorization code: %w", err)
			}

			user, err := mastodon.LogIn(ctx, conf, code)
			if err != nil {
				return err
			}
			if err := user.Save(userPath); err != nil {
				return err
			}

			account, err := mastodon.NewClient(user.APIBaseURL, user.AccessToken).VerifyCredentials(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Authenticated as %s\n", account.Acct)
			return nil
		},
	}

	cmd.Flags().BoolVar(&push, "push", false, "register the secondary identity used by the push command")
	return cmd
}
