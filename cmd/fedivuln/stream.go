package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackmichael/fedivuln/internal/domain"
	"github.com/blackmichael/fedivuln/internal/timeline"
	"github.com/blackmichael/fedivuln/internal/vulnlookup"
	"github.com/spf13/cobra"
)

var errNoStreamMode = errors.New("one of --user or --public is required")

func newStreamCmd(a *app) *cobra.Command {
	var (
		user         bool
		public       bool
		pushSighting bool
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Watch a Mastodon timeline for vulnerability identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var stream string
			switch {
			case user:
				stream = timeline.StreamUser
			case public:
				stream = timeline.StreamPublic
			default:
				cmd.Usage()
				return errNoStreamMode
			}
			return a.runStream(cmd.Context(), stream, pushSighting)
		},
	}

	cmd.Flags().BoolVar(&user, "user", false,
		"stream events relevant to the authorized user: home timeline and notifications")
	cmd.Flags().BoolVar(&public, "public", false, "stream public events")
	cmd.Flags().BoolVar(&pushSighting, "push-sighting", false,
		"push the sightings to Vulnerability-Lookup")
	cmd.MarkFlagsMutuallyExclusive("user", "public")
	return cmd
}

func (a *app) runStream(ctx context.Context, stream string, pushSighting bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := a.mastodonClient(cfg, false)
	if err != nil {
		return err
	}
	streamURL, err := client.StreamingURL(stream)
	if err != nil {
		return err
	}

	extractor, err := domain.NewExtractor(cfg.VulnerabilityPatterns)
	if err != nil {
		return fmt.Errorf("compile vulnerability patterns: %w", err)
	}

	var submitter domain.SightingSubmitter
	if pushSighting {
		submitter = vulnlookup.NewClient(cfg.VulnerabilityLookupBaseURL, cfg.VulnerabilityAuthToken)
	}

	store, monitor, err := a.openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	sightings := domain.NewSightingService(extractor, submitter, monitor, a.logger)
	listener := timeline.NewListener(streamURL, stream, sightings, a.logger)

	shutdown := a.startMetrics(cfg, "FediVuln-Stream-"+stream)
	defer shutdown()

	a.logger.Info("starting timeline stream", "stream", stream, "push_sighting", pushSighting)
	if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Info("timeline stream stopped", "stream", stream)
	return nil
}
