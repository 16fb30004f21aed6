// Package config loads the gateway configuration. Values come from
// defaults, then an optional YAML file, then the environment; command line
// flags are applied on top by the caller.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// UpstreamLoss selects what happens to a client session when its upstream
// connection closes or fails.
type UpstreamLoss string

const (
	// Terminate closes the client session after notifying it.
	Terminate UpstreamLoss = "terminate"
	// Detach notifies the client and keeps its session open.
	Detach UpstreamLoss = "detach"
)

// Config is the complete gateway configuration.
type Config struct {
	Listen        string        `yaml:"listen"`
	MetricsListen string        `yaml:"metrics_listen"`
	APIBase       string        `yaml:"api_base"`
	TypingTimeout time.Duration `yaml:"typing_timeout"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	UpstreamLoss  UpstreamLoss  `yaml:"upstream_loss"`
	Log           LogConfig     `yaml:"log"`
	Identity      Identity      `yaml:"identity"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Identity is the client fingerprint presented to the upstream service on
// the handshake and on side-channel REST calls.
type Identity struct {
	UserAgent string `yaml:"user_agent"`
	Locale    string `yaml:"locale"`
	Timezone  string `yaml:"timezone"`

	// Masking applied to identify payloads.
	OS      string `yaml:"os"`
	Browser string `yaml:"browser"`

	Device            string `yaml:"device"`
	SystemLocale      string `yaml:"system_locale"`
	ClientVersion     string `yaml:"client_version"`
	ReleaseChannel    string `yaml:"release_channel"`
	DeviceVendorID    string `yaml:"device_vendor_id"`
	DesignID          int    `yaml:"design_id"`
	BrowserVersion    string `yaml:"browser_version"`
	OSVersion         string `yaml:"os_version"`
	ClientBuildNumber int    `yaml:"client_build_number"`
}

// DefaultIdentity returns the fingerprint of the Android client.
func DefaultIdentity() Identity {
	return Identity{
		UserAgent:         "Discord-Android/262205;RNA",
		Locale:            "en-US",
		Timezone:          "Europe/Kyiv",
		OS:                "Android",
		Browser:           "Discord Android",
		Device:            "a20e",
		SystemLocale:      "en-US",
		ClientVersion:     "262.5 - rn",
		ReleaseChannel:    "alpha",
		DeviceVendorID:    "17503929-a4b8-4490-87bf-0222adfdadc8",
		DesignID:          2,
		BrowserVersion:    "",
		OSVersion:         "34",
		ClientBuildNumber: 3463,
	}
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Listen:        ":8081",
		APIBase:       "https://discord.com/api/v9",
		TypingTimeout: 10 * time.Second,
		DialTimeout:   15 * time.Second,
		UpstreamLoss:  Terminate,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Identity: DefaultIdentity(),
	}
}

// Load reads the YAML file at path, if any, over the defaults and then
// applies the environment read through getenv. A nil getenv uses os.Getenv.
// The result is not validated; call Validate once flags have been applied.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if v := getenv("PORT"); v != "" {
		cfg.Listen = ListenAddr(v)
	}
	if v := getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsListen = ListenAddr(v)
	}
	return cfg, nil
}

// ListenAddr accepts either a host:port address or a bare port number.
func ListenAddr(v string) string {
	v = strings.TrimSpace(v)
	if _, err := strconv.Atoi(v); err == nil {
		return ":" + v
	}
	return v
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address must not be empty")
	}
	if c.APIBase == "" {
		return errors.New("api_base must not be empty")
	}
	if c.TypingTimeout <= 0 {
		return errors.Errorf("typing_timeout must be positive, got %s", c.TypingTimeout)
	}
	if c.DialTimeout <= 0 {
		return errors.Errorf("dial_timeout must be positive, got %s", c.DialTimeout)
	}
	switch c.UpstreamLoss {
	case Terminate, Detach:
	default:
		return errors.Errorf("invalid upstream_loss: %q", c.UpstreamLoss)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.Errorf("invalid log format: %q", c.Log.Format)
	}
	return nil
}
