package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/blackmichael/fedivuln/internal/config"
	"github.com/blackmichael/fedivuln/internal/domain"
	"github.com/blackmichael/fedivuln/internal/httpserver"
	"github.com/blackmichael/fedivuln/internal/mastodon"
	"github.com/blackmichael/fedivuln/internal/metrics"
	"github.com/blackmichael/fedivuln/internal/valkey"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand shares. It is populated once by the root
// command before a subcommand runs.
type app struct {
	cfgFile string
	verbose bool

	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:   "fedivuln",
		Short: "Relay Vulnerability-Lookup events to the Fediverse and report sightings back",
		Long: `fedivuln connects Vulnerability-Lookup to Mastodon.

  fedivuln push      Announce new vulnerabilities, comments and bundles
  fedivuln stream    Watch a timeline and report vulnerability sightings
  fedivuln publish   Post a single status
  fedivuln search    Search the instance
  fedivuln register  Register the application and log in`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewJSONHandler(a.out, &slog.HandlerOptions{
				Level: level,
			}))
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default: $"+config.EnvConfigPath+" or ./fedivuln.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"enable debug logging")

	root.AddCommand(
		newPushCmd(a),
		newStreamCmd(a),
		newPublishCmd(a),
		newSearchCmd(a),
		newRegisterCmd(a),
	)
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// mastodonClient builds an authenticated client for the primary identity, or
// the push identity when push is set.
func (a *app) mastodonClient(cfg *config.Config, push bool) (*mastodon.Client, error) {
	_, userCred := cfg.Credentials(push)
	creds, err := mastodon.ResolveUserCredentials(userCred, cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("load mastodon credentials: %w", err)
	}
	return mastodon.NewClient(creds.APIBaseURL, creds.AccessToken), nil
}

// openStore connects to Valkey. The returned monitor is the store itself, or
// a no-op when no store was requested.
func (a *app) openStore(ctx context.Context, cfg *config.Config, required bool) (*valkey.Store, domain.Monitor, error) {
	if !required && !cfg.HeartbeatEnabled {
		return nil, domain.NopMonitor{}, nil
	}

	store, err := valkey.New(ctx, cfg.ValkeyHost, cfg.ValkeyPort, valkey.Options{
		HeartbeatEnabled: cfg.HeartbeatEnabled,
		Expiration:       cfg.Expiration(),
		LogKey:           cfg.LogKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to valkey: %w", err)
	}
	a.logger.Info("connected to valkey", "host", cfg.ValkeyHost, "port", cfg.ValkeyPort)
	return store, store, nil
}

// startMetrics serves health and metrics when an address is configured. The
// returned function shuts the server down.
func (a *app) startMetrics(cfg *config.Config, process string) func() {
	metrics.InitMetrics()
	if cfg.MetricsAddr == "" {
		return func() {}
	}

	server := httpserver.NewServer(cfg.MetricsAddr, process, a.logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("http server exited with error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.logger.Error("error shutting down http server", "error", err)
		}
	}
}
