package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search for users, tags and, when enabled, full text",
		Long: `Search for users, tags and, when enabled, full text, by default within
your own posts and those you have interacted with.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			client, err := a.mastodonClient(cfg, false)
			if err != nil {
				return err
			}

			results, err := client.Search(cmd.Context(), query)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal results: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "query of the search")
	cmd.MarkFlagRequired("query")
	return cmd
}
