package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/blackmichael/fedivuln/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "FEDIVULN_CONFIG"

// Config holds all configuration for the application. It is loaded once at
// startup and never modified.
type Config struct {
	// APIBaseURL is the Mastodon instance.
	APIBaseURL string   `mapstructure:"api_base_url"`
	Scopes     []string `mapstructure:"scopes"`
	AppName    string   `mapstructure:"app_name"`

	// MastodonClientCred and MastodonUserCred are credential file paths. The
	// user credential may also be a bare access token.
	MastodonClientCred string `mapstructure:"mastodon_clientcred"`
	MastodonUserCred   string `mapstructure:"mastodon_usercred"`

	// Optional identity used by the push command instead of the one above.
	MastodonClientCredPush string `mapstructure:"mastodon_clientcred_push"`
	MastodonUserCredPush   string `mapstructure:"mastodon_usercred_push"`

	// Templates are keyed by topic name.
	Templates       map[string]string `mapstructure:"templates"`
	MaxStatusLength int               `mapstructure:"max_status_length"`

	// VulnerabilityPatterns override the default identifier patterns.
	VulnerabilityPatterns []string `mapstructure:"vulnerability_patterns"`

	VulnerabilityLookupBaseURL string `mapstructure:"vulnerability_lookup_base_url"`
	VulnerabilityAuthToken     string `mapstructure:"vulnerability_auth_token"`

	ValkeyHost string `mapstructure:"valkey_host"`
	ValkeyPort int    `mapstructure:"valkey_port"`

	HeartbeatEnabled bool `mapstructure:"heartbeat_enabled"`
	// ExpirationPeriod is the heartbeat TTL in seconds.
	ExpirationPeriod int    `mapstructure:"expiration_period"`
	LogKey           string `mapstructure:"log_key"`

	// MetricsAddr enables the health and metrics endpoint when set.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration from the file at path, or from the file named by
// FEDIVULN_CONFIG when path is empty, with FEDIVULN_* environment overrides.
// A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	v := viper.New()
	v.SetEnvPrefix("FEDIVULN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fedivuln")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/fedivuln")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No file: defaults and environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "")
	v.SetDefault("scopes", []string{"read", "write", "follow", "push"})
	v.SetDefault("app_name", "Vulnerability-Lookup")
	v.SetDefault("mastodon_clientcred", "mastodon_clientcred.secret")
	v.SetDefault("mastodon_usercred", "mastodon_usercred.secret")
	v.SetDefault("mastodon_clientcred_push", "")
	v.SetDefault("mastodon_usercred_push", "")
	v.SetDefault("templates", map[string]string{})
	v.SetDefault("max_status_length", domain.DefaultMaxStatusLength)
	v.SetDefault("vulnerability_patterns", []string{})

	v.SetDefault("vulnerability_lookup_base_url", "https://vulnerability.circl.lu/")
	v.SetDefault("vulnerability_auth_token", "")

	v.SetDefault("valkey_host", "127.0.0.1")
	v.SetDefault("valkey_port", 10002)
	v.SetDefault("heartbeat_enabled", false)
	v.SetDefault("expiration_period", 18000)
	v.SetDefault("log_key", "process_logs_FediVuln")
	v.SetDefault("metrics_addr", "")
}

// Validate reports the first invalid or missing setting.
func (c *Config) Validate() error {
	if err := validateURL("api_base_url", c.APIBaseURL); err != nil {
		return err
	}
	if err := validateURL("vulnerability_lookup_base_url", c.VulnerabilityLookupBaseURL); err != nil {
		return err
	}

	for name := range c.Templates {
		if _, err := domain.ParseTopic(name); err != nil {
			return fmt.Errorf("invalid templates entry: %w", err)
		}
	}
	if _, err := domain.NewExtractor(c.VulnerabilityPatterns); err != nil {
		return fmt.Errorf("invalid vulnerability_patterns: %w", err)
	}

	if c.MaxStatusLength <= 0 {
		return fmt.Errorf("max_status_length must be positive, got %d", c.MaxStatusLength)
	}
	if c.ValkeyPort < 1 || c.ValkeyPort > 65535 {
		return fmt.Errorf("valkey_port out of range: %d", c.ValkeyPort)
	}
	if c.HeartbeatEnabled && c.ExpirationPeriod <= 0 {
		return fmt.Errorf("expiration_period must be positive when heartbeat_enabled is set")
	}
	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", key, raw)
	}
	return nil
}

// TopicTemplates returns the configured templates keyed by topic.
func (c *Config) TopicTemplates() map[domain.Topic]string {
	out := make(map[domain.Topic]string, len(c.Templates))
	for name, tmpl := range c.Templates {
		out[domain.Topic(name)] = tmpl
	}
	return out
}

// Expiration returns the heartbeat TTL.
func (c *Config) Expiration() time.Duration {
	return time.Duration(c.ExpirationPeriod) * time.Second
}

// Credentials returns the credential paths of the primary identity, or of
// the secondary push identity when push is set and one is configured.
func (c *Config) Credentials(push bool) (clientCred, userCred string) {
	if push && c.MastodonUserCredPush != "" {
		return c.MastodonClientCredPush, c.MastodonUserCredPush
	}
	return c.MastodonClientCred, c.MastodonUserCred
}
