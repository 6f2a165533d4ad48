// Package config handles chattoc configuration from a YAML file with
// CHATTOC_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/label"
	"github.com/hazyhaar/chattoc/outline"
)

// Config is the top-level configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Page     PageConfig     `yaml:"page"`
	Outline  OutlineConfig  `yaml:"outline"`
	Export   ExportConfig   `yaml:"export"`
	Profiles ProfilesConfig `yaml:"profiles"`
	Server   ServerConfig   `yaml:"server"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Mode             string   `yaml:"mode"` // headful | headless
	UserDataDir      string   `yaml:"user_data_dir"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// PageConfig selects the chat page.
type PageConfig struct {
	URL       string `yaml:"url"`
	Container string `yaml:"container"`
}

// OutlineConfig tunes the engine. Zero values take the engine defaults.
type OutlineConfig struct {
	Predicates        []string      `yaml:"predicates"`
	AnchorAttr        string        `yaml:"anchor_attr"`
	AnchorPrefix      string        `yaml:"anchor_prefix"`
	SecondaryAttr     string        `yaml:"secondary_attr"`
	HighlightClass    string        `yaml:"highlight_class"`
	LabelMax          int           `yaml:"label_max"`
	LabelFallback     string        `yaml:"label_fallback"`
	Frame             time.Duration `yaml:"frame"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	NavInterval       time.Duration `yaml:"nav_interval"`
	HighlightDuration time.Duration `yaml:"highlight_duration"`
	LocateStep        int           `yaml:"locate_step"`
	LocateInterval    time.Duration `yaml:"locate_interval"`
	LocateDeadline    time.Duration `yaml:"locate_deadline"`
}

// ExportConfig controls the Markdown export.
type ExportConfig struct {
	Title    string `yaml:"title"`
	Detailed bool   `yaml:"detailed"`
}

// ProfilesConfig points at the per-host predicate store. An empty Path
// disables profiles.
type ProfilesConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	MCP  bool   `yaml:"mcp"`
}

// WebhookConfig enables list delivery to a URL.
type WebhookConfig struct {
	URL     string `yaml:"url"`
	Retries int    `yaml:"retries"`
}

// Load reads path when set, applies environment overrides, then defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headful"
	}
	if c.Page.URL == "" {
		c.Page.URL = "https://chatgpt.com/"
	}
	if c.Page.Container == "" {
		c.Page.Container = ".flex.h-full.flex-col.overflow-y-auto"
	}
	if c.Export.Title == "" {
		c.Export.Title = "ChatGPT Questions"
	}
	if c.Profiles.PollInterval <= 0 {
		c.Profiles.PollInterval = 2 * time.Second
	}
	if c.Profiles.Debounce <= 0 {
		c.Profiles.Debounce = 500 * time.Millisecond
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8765"
	}
	if c.Webhook.Retries <= 0 {
		c.Webhook.Retries = 3
	}
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"CHATTOC_REMOTE":        &c.Browser.Remote,
		"CHATTOC_MODE":          &c.Browser.Mode,
		"CHATTOC_USER_DATA_DIR": &c.Browser.UserDataDir,
		"CHATTOC_URL":           &c.Page.URL,
		"CHATTOC_PROFILES_DB":   &c.Profiles.Path,
		"CHATTOC_ADDR":          &c.Server.Addr,
		"CHATTOC_WEBHOOK_URL":   &c.Webhook.URL,
	}
	for k, p := range str {
		if v := os.Getenv(k); v != "" {
			*p = v
		}
	}
	if v := os.Getenv("CHATTOC_MCP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: CHATTOC_MCP: %w", err)
		}
		c.Server.MCP = b
	}
	if v := os.Getenv("CHATTOC_EXPORT_DETAILED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: CHATTOC_EXPORT_DETAILED: %w", err)
		}
		c.Export.Detailed = b
	}
	return nil
}

// OutlineOptions converts the outline section into engine options.
func (c *Config) OutlineOptions() (outline.Options, error) {
	o := c.Outline
	opts := outline.Options{
		AnchorAttr:        o.AnchorAttr,
		AnchorPrefix:      o.AnchorPrefix,
		SecondaryAttr:     o.SecondaryAttr,
		HighlightClass:    o.HighlightClass,
		Label:             label.Options{Max: o.LabelMax, Fallback: o.LabelFallback},
		PollInterval:      o.PollInterval,
		NavInterval:       o.NavInterval,
		HighlightDuration: o.HighlightDuration,
		LocateStep:        o.LocateStep,
		LocateInterval:    o.LocateInterval,
		LocateDeadline:    o.LocateDeadline,
	}
	if len(o.Predicates) > 0 {
		sels, err := dom.ParseSelectors(o.Predicates)
		if err != nil {
			return outline.Options{}, fmt.Errorf("config: outline.predicates: %w", err)
		}
		opts.Predicates = sels
	}
	return opts, nil
}
