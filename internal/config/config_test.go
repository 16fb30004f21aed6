package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Listen != ":8081" {
		t.Errorf("Listen = %q, want :8081", cfg.Listen)
	}
	if cfg.UpstreamLoss != Terminate {
		t.Errorf("UpstreamLoss = %q, want terminate", cfg.UpstreamLoss)
	}
	if cfg.MetricsListen != "" {
		t.Errorf("MetricsListen = %q, want disabled", cfg.MetricsListen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("", env(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := `
listen: "127.0.0.1:9000"
typing_timeout: 3s
upstream_loss: detach
log:
  level: debug
  format: json
identity:
  locale: uk
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, env(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Listen = "127.0.0.1:9000"
	want.TypingTimeout = 3 * time.Second
	want.UpstreamLoss = Detach
	want.Log = LogConfig{Level: "debug", Format: "json"}
	want.Identity.Locale = "uk"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, env(map[string]string{"PORT": "7000", "METRICS_ADDR": "localhost:9100"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":7000" {
		t.Errorf("Listen = %q, want :7000", cfg.Listen)
	}
	if cfg.MetricsListen != "localhost:9100" {
		t.Errorf("MetricsListen = %q, want localhost:9100", cfg.MetricsListen)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("listen: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml"), env(nil)); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
	_, err := Load(bad, env(nil))
	if err == nil {
		t.Fatal("Load() of invalid YAML succeeded")
	}
	if !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("error = %v, want file name in message", err)
	}
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"8081", ":8081"},
		{" 8081 ", ":8081"},
		{":8081", ":8081"},
		{"0.0.0.0:80", "0.0.0.0:80"},
	}
	for _, tt := range tests {
		if got := ListenAddr(tt.in); got != tt.want {
			t.Errorf("ListenAddr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"empty api base", func(c *Config) { c.APIBase = "" }, "api_base"},
		{"zero typing timeout", func(c *Config) { c.TypingTimeout = 0 }, "typing_timeout"},
		{"negative dial timeout", func(c *Config) { c.DialTimeout = -time.Second }, "dial_timeout"},
		{"unknown loss policy", func(c *Config) { c.UpstreamLoss = "retry" }, "upstream_loss"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
