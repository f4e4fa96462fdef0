package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/blackmichael/fedivuln/internal/domain"
)

const sampleConfig = `
api_base_url: https://social.circl.lu
scopes: [read, write]
app_name: Vulnerability-Lookup
mastodon_clientcred: client.secret
mastodon_usercred: user.secret
mastodon_clientcred_push: push_client.secret
mastodon_usercred_push: push_user.secret
templates:
  comment: "<VULNID>: <TITLE> <LINK>"
vulnerability_lookup_base_url: https://vulnerability.circl.lu/
vulnerability_auth_token: secret-token
valkey_host: 10.0.0.2
valkey_port: 6379
heartbeat_enabled: true
expiration_period: 120
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fedivuln.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIBaseURL != "https://social.circl.lu" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if !reflect.DeepEqual(cfg.Scopes, []string{"read", "write"}) {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
	if cfg.ValkeyHost != "10.0.0.2" || cfg.ValkeyPort != 6379 {
		t.Errorf("valkey = %s:%d", cfg.ValkeyHost, cfg.ValkeyPort)
	}
	if !cfg.HeartbeatEnabled || cfg.Expiration() != 2*time.Minute {
		t.Errorf("heartbeat = %v, %v", cfg.HeartbeatEnabled, cfg.Expiration())
	}
	if cfg.VulnerabilityAuthToken != "secret-token" {
		t.Errorf("token = %q", cfg.VulnerabilityAuthToken)
	}

	templates := cfg.TopicTemplates()
	if templates[domain.TopicComment] != "<VULNID>: <TITLE> <LINK>" {
		t.Errorf("templates = %v", templates)
	}

	clientCred, userCred := cfg.Credentials(true)
	if clientCred != "push_client.secret" || userCred != "push_user.secret" {
		t.Errorf("push credentials = %s, %s", clientCred, userCred)
	}
	clientCred, userCred = cfg.Credentials(false)
	if clientCred != "client.secret" || userCred != "user.secret" {
		t.Errorf("primary credentials = %s, %s", clientCred, userCred)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "api_base_url: https://social.example\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxStatusLength != domain.DefaultMaxStatusLength {
		t.Errorf("MaxStatusLength = %d", cfg.MaxStatusLength)
	}
	if cfg.ValkeyPort != 10002 || cfg.LogKey != "process_logs_FediVuln" {
		t.Errorf("valkey defaults = %d, %s", cfg.ValkeyPort, cfg.LogKey)
	}
	if cfg.HeartbeatEnabled {
		t.Error("heartbeat enabled by default")
	}
	if len(cfg.VulnerabilityPatterns) != 0 {
		t.Errorf("patterns = %v", cfg.VulnerabilityPatterns)
	}

	clientCred, userCred := cfg.Credentials(true)
	if clientCred != "mastodon_clientcred.secret" || userCred != "mastodon_usercred.secret" {
		t.Errorf("push credentials fall back to primary: %s, %s", clientCred, userCred)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("FEDIVULN_VALKEY_PORT", "7000")
	t.Setenv("FEDIVULN_VULNERABILITY_AUTH_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ValkeyPort != 7000 {
		t.Errorf("ValkeyPort = %d", cfg.ValkeyPort)
	}
	if cfg.VulnerabilityAuthToken != "from-env" {
		t.Errorf("token = %q", cfg.VulnerabilityAuthToken)
	}
}

func TestLoadPathFromEnvironment(t *testing.T) {
	t.Setenv(EnvConfigPath, writeConfig(t, "api_base_url: https://from-env.example\n"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "https://from-env.example" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing api base url", "valkey_port: 6379\n", "api_base_url is required"},
		{"bad scheme", "api_base_url: ftp://x\n", "scheme must be http or https"},
		{"invalid pattern", "api_base_url: https://x\nvulnerability_patterns: ['CVE-(\\d']\n", "vulnerability_patterns"},
		{"unknown template topic", "api_base_url: https://x\ntemplates:\n  advisory: hi\n", "templates"},
		{"bad port", "api_base_url: https://x\nvalkey_port: 70000\n", "valkey_port"},
		{"bad expiration", "api_base_url: https://x\nheartbeat_enabled: true\nexpiration_period: 0\n", "expiration_period"},
		{"malformed yaml", "api_base_url: [\n", "reading config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
