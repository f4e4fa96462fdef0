package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPublishCmd(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Post a single status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			client, err := a.mastodonClient(cfg, false)
			if err != nil {
				return err
			}

			status, err := client.PostStatus(cmd.Context(), message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status published: %s\n", status.URL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "input", "i", "", "message to post")
	cmd.MarkFlagRequired("input")
	return cmd
}
