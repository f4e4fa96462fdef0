package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/fedivuln/internal/domain"
	"github.com/blackmichael/fedivuln/internal/eventstream"
	"github.com/blackmichael/fedivuln/internal/metrics"
	"github.com/spf13/cobra"
)

func newPushCmd(a *app) *cobra.Command {
	var (
		topicName string
		useValkey bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Announce Vulnerability-Lookup events of one topic on Mastodon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic, err := domain.ParseTopic(topicName)
			if err != nil {
				return err
			}
			return a.runPush(cmd.Context(), topic, useValkey)
		},
	}

	cmd.Flags().StringVarP(&topicName, "topic", "t", string(domain.TopicVulnerability),
		"topic to relay: vulnerability, comment, bundle or sighting")
	cmd.Flags().BoolVar(&useValkey, "valkey", false,
		"read the Valkey pub/sub channel instead of the HTTP event stream")
	return cmd
}

func (a *app) runPush(ctx context.Context, topic domain.Topic, useValkey bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := a.mastodonClient(cfg, true)
	if err != nil {
		return err
	}

	store, monitor, err := a.openStore(ctx, cfg, useValkey)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var transport eventstream.Transport
	if useValkey {
		transport = eventstream.NewPubSub(store.Client(), monitor)
	} else {
		transport = eventstream.NewSSE(cfg.VulnerabilityLookupBaseURL, cfg.VulnerabilityAuthToken, nil)
	}

	relay := domain.NewRelayService(
		topic,
		domain.NewNormalizer(cfg.VulnerabilityLookupBaseURL),
		domain.NewTemplater(cfg.TopicTemplates(), cfg.MaxStatusLength),
		client,
		monitor,
		a.logger,
	)

	shutdown := a.startMetrics(cfg, eventstream.ProcessName(topic))
	defer shutdown()

	if topic == domain.TopicSighting {
		a.logger.Warn("sighting events have no announcement, they will only be counted")
	}
	a.logger.Info("relay started", "topic", topic, "valkey", useValkey)

	if err := consume(ctx, transport, relay, a.logger); err != nil {
		if logErr := monitor.Log(context.Background(), "error", err.Error()); logErr != nil {
			a.logger.Warn("failed to push log record", "error", logErr)
		}
		return err
	}

	a.logger.Info("relay stopped", "topic", topic)
	return nil
}

// consume relays events in the order received until the stream ends. It
// returns the stream's terminal error, if any.
func consume(ctx context.Context, transport eventstream.Transport, relay *domain.RelayService, logger *slog.Logger) error {
	topic := relay.Topic()
	for msg, err := range transport.Events(ctx, topic) {
		if err != nil {
			return fmt.Errorf("event stream: %w", err)
		}

		metrics.RecordMessage(string(topic), msg.Text)
		if msg.Text {
			logger.Warn("payload is not JSON", "topic", topic, "event", msg.Event)
		}

		start := time.Now()
		outcome := relay.Handle(ctx, msg.Data)
		metrics.RecordEvent(string(topic), string(outcome))
		if outcome == domain.OutcomePublished || outcome == domain.OutcomeFailed {
			metrics.RecordPublishDuration(time.Since(start))
		}
	}
	return nil
}
