// Package config provides configuration management for sitekit using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration describes the page being served, where contact
// submissions are sent, which ad pixel account receives conversions, how the
// logo is located, and how anchor scrolling behaves. Values may come from a
// .sitekit.yml file, SITEKIT_ prefixed environment variables (optionally
// preloaded from a .env file), or flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/sitekit/internal/dispatch"
	"github.com/conneroisu/sitekit/internal/form"
)

// Where submissions are dispatched from.
const (
	DispatchServer  = "server"
	DispatchBrowser = "browser"
)

// Form field policies. Exactly one is active.
const (
	PolicyMessage = form.PolicyMessage
	PolicyPhone   = form.PolicyPhone
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Site         SiteConfig         `mapstructure:"site" yaml:"site"`
	Form         FormConfig         `mapstructure:"form" yaml:"form"`
	Destinations DestinationsConfig `mapstructure:"destinations" yaml:"destinations"`
	Pixel        PixelConfig        `mapstructure:"pixel" yaml:"pixel"`
	Logo         LogoConfig         `mapstructure:"logo" yaml:"logo"`
	Scroll       ScrollConfig       `mapstructure:"scroll" yaml:"scroll"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Port           int             `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
	Host           string          `mapstructure:"host" yaml:"host"`
	Environment    string          `mapstructure:"environment" yaml:"environment" validate:"omitempty,oneof=development production"`
	AllowedOrigins []string        `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	StaticDir      string          `mapstructure:"static_dir" yaml:"static_dir"`
	HotReload      bool            `mapstructure:"hot_reload" yaml:"hot_reload"`
	SessionTTL     time.Duration   `mapstructure:"session_ttl" yaml:"session_ttl"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" validate:"min=0"`
	Burst             int  `mapstructure:"burst" yaml:"burst" validate:"min=0"`
}

// SiteConfig holds the page content.
type SiteConfig struct {
	Title    string          `mapstructure:"title" yaml:"title"`
	Tagline  string          `mapstructure:"tagline" yaml:"tagline"`
	Sections []SectionConfig `mapstructure:"sections" yaml:"sections" validate:"dive"`
}

type SectionConfig struct {
	ID    string `mapstructure:"id" yaml:"id" validate:"required"`
	Title string `mapstructure:"title" yaml:"title"`
	Body  string `mapstructure:"body" yaml:"body"`
}

type FormConfig struct {
	Policy         string        `mapstructure:"policy" yaml:"policy" validate:"oneof=message phone"`
	SuccessMessage string        `mapstructure:"success_message" yaml:"success_message"`
	ClearAfter     time.Duration `mapstructure:"clear_after" yaml:"clear_after"`
	Source         string        `mapstructure:"source" yaml:"source"`
	// Dispatch selects who contacts the destinations: the server, or the
	// visitor's browser through the wasm client.
	Dispatch string `mapstructure:"dispatch" yaml:"dispatch" validate:"oneof=server browser"`
}

type DestinationsConfig struct {
	Webhook       EndpointConfig      `mapstructure:"webhook" yaml:"webhook"`
	Relay         EndpointConfig      `mapstructure:"relay" yaml:"relay"`
	ConversionAPI ConversionAPIConfig `mapstructure:"conversion_api" yaml:"conversion_api"`
}

// EndpointConfig is a plain HTTP destination.
type EndpointConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ConversionAPIConfig is the ad network's server-side conversion endpoint.
type ConversionAPIConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	Token     string        `mapstructure:"token" yaml:"-"`
	EventName string        `mapstructure:"event_name" yaml:"event_name"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type PixelConfig struct {
	AccountID string `mapstructure:"account_id" yaml:"account_id"`
	ScriptURL string `mapstructure:"script_url" yaml:"script_url" validate:"omitempty,url"`
}

type LogoConfig struct {
	Dir          string   `mapstructure:"dir" yaml:"dir"`
	BaseName     string   `mapstructure:"base_name" yaml:"base_name"`
	Extensions   []string `mapstructure:"extensions" yaml:"extensions" validate:"min=1"`
	AltText      string   `mapstructure:"alt_text" yaml:"alt_text"`
	FallbackText string   `mapstructure:"fallback_text" yaml:"fallback_text"`
}

type ScrollConfig struct {
	HeaderOffset        int           `mapstructure:"header_offset" yaml:"header_offset" validate:"min=0"`
	InternalClickWindow time.Duration `mapstructure:"internal_click_window" yaml:"internal_click_window"`
	ShadowThreshold     int           `mapstructure:"shadow_threshold" yaml:"shadow_threshold" validate:"min=0"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Default values shared by Load and Default.
const (
	DefaultSource         = form.DefaultSource
	DefaultSuccessMessage = "Thank you for your message! We'll get back to you soon."
	DefaultClearAfter     = 5 * time.Second
	DefaultHeaderOffset   = 80
	DefaultClickWindow    = time.Second
	DefaultShadowAt       = 100
	DefaultEventName      = "Contact Form Submission"
	DefaultPixelScript    = "https://www.redditstatic.com/ads/pixel.js"
	DefaultTimeout        = 15 * time.Second
)

// DefaultLogoExtensions is the order in which logo formats are tried.
var DefaultLogoExtensions = []string{"svg", "png", "jpg", "jpeg"}

// Default returns a configuration with every default applied and no
// destinations configured.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, func(string) bool { return false })
	return cfg
}

// Load reads the global viper instance into a Config, applies defaults,
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load for an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through env vars arrive as a single comma separated string.
	if v.IsSet("logo.extensions") && len(config.Logo.Extensions) <= 1 {
		if exts := v.GetStringSlice("logo.extensions"); len(exts) == 1 && strings.Contains(exts[0], ",") {
			config.Logo.Extensions = splitList(exts[0])
		}
	}
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 1 {
		config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins[0])
	}

	applyDefaults(&config, v.IsSet)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config, isSet func(string) bool) {
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !isSet("server.port") && config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Environment == "" {
		config.Server.Environment = "development"
	}
	if !isSet("server.hot_reload") {
		config.Server.HotReload = config.Server.Environment == "development"
	}
	if config.Server.StaticDir == "" {
		config.Server.StaticDir = "./static"
	}
	if config.Server.SessionTTL <= 0 {
		config.Server.SessionTTL = 30 * time.Minute
	}
	if !isSet("server.rate_limit.enabled") {
		config.Server.RateLimit.Enabled = true
	}
	if config.Server.RateLimit.RequestsPerMinute == 0 {
		config.Server.RateLimit.RequestsPerMinute = 10
	}
	if config.Server.RateLimit.Burst == 0 {
		config.Server.RateLimit.Burst = 3
	}

	if config.Site.Title == "" {
		config.Site.Title = "Welcome"
	}
	if len(config.Site.Sections) == 0 {
		config.Site.Sections = []SectionConfig{
			{ID: "features", Title: "Features"},
			{ID: "pricing", Title: "Pricing"},
			{ID: "contact", Title: "Contact"},
		}
	}

	if config.Form.Policy == "" {
		config.Form.Policy = PolicyMessage
	}
	if config.Form.SuccessMessage == "" {
		config.Form.SuccessMessage = DefaultSuccessMessage
	}
	if config.Form.ClearAfter <= 0 {
		config.Form.ClearAfter = DefaultClearAfter
	}
	if config.Form.Source == "" {
		config.Form.Source = DefaultSource
	}
	if config.Form.Dispatch == "" {
		config.Form.Dispatch = DispatchServer
	}

	d := &config.Destinations
	d.Webhook.URL = normalizeEndpoint(d.Webhook.URL)
	d.Relay.URL = normalizeEndpoint(d.Relay.URL)
	d.ConversionAPI.Endpoint = normalizeEndpoint(d.ConversionAPI.Endpoint)
	d.ConversionAPI.Token = normalizeEndpoint(d.ConversionAPI.Token)
	for _, timeout := range []*time.Duration{&d.Webhook.Timeout, &d.Relay.Timeout, &d.ConversionAPI.Timeout} {
		if *timeout <= 0 {
			*timeout = DefaultTimeout
		}
	}
	if d.ConversionAPI.EventName == "" {
		d.ConversionAPI.EventName = DefaultEventName
	}

	config.Pixel.AccountID = normalizeEndpoint(config.Pixel.AccountID)
	if config.Pixel.ScriptURL == "" {
		config.Pixel.ScriptURL = DefaultPixelScript
	}

	if config.Logo.Dir == "" {
		config.Logo.Dir = "./static"
	}
	if config.Logo.BaseName == "" {
		config.Logo.BaseName = "logo"
	}
	if len(config.Logo.Extensions) == 0 {
		config.Logo.Extensions = append([]string(nil), DefaultLogoExtensions...)
	}
	for i, ext := range config.Logo.Extensions {
		config.Logo.Extensions[i] = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	}
	if config.Logo.FallbackText == "" {
		config.Logo.FallbackText = config.Site.Title
	}
	if config.Logo.AltText == "" {
		config.Logo.AltText = config.Logo.FallbackText
	}

	if !isSet("scroll.header_offset") && config.Scroll.HeaderOffset == 0 {
		config.Scroll.HeaderOffset = DefaultHeaderOffset
	}
	if config.Scroll.InternalClickWindow <= 0 {
		config.Scroll.InternalClickWindow = DefaultClickWindow
	}
	if !isSet("scroll.shadow_threshold") && config.Scroll.ShadowThreshold == 0 {
		config.Scroll.ShadowThreshold = DefaultShadowAt
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}

// IsConfigured reports whether an endpoint or credential holds a real value.
// Empty strings and the YOUR_..._HERE placeholders shipped in sample
// configuration count as unset.
func IsConfigured(value string) bool {
	return normalizeEndpoint(value) != ""
}

func normalizeEndpoint(value string) string {
	value = strings.TrimSpace(value)
	upper := strings.ToUpper(value)
	if strings.HasPrefix(upper, "YOUR_") && strings.HasSuffix(upper, "_HERE") {
		return ""
	}
	if strings.EqualFold(value, "null") {
		return ""
	}
	return value
}

// HasDestination reports whether at least one submission destination that
// counts toward success is configured.
func (c *Config) HasDestination() bool {
	return IsConfigured(c.Destinations.Webhook.URL) || IsConfigured(c.Destinations.Relay.URL)
}

// ConversionAPIActive reports whether the conversion API should be called.
func (c *Config) ConversionAPIActive() bool {
	api := c.Destinations.ConversionAPI
	return api.Enabled && IsConfigured(api.Endpoint) && IsConfigured(api.Token)
}

// Endpoints returns the destinations to dispatch to. The conversion API is
// only included when it is active.
func (c *Config) Endpoints() dispatch.Endpoints {
	d := c.Destinations
	e := dispatch.Endpoints{
		WebhookURL:     normalizeEndpoint(d.Webhook.URL),
		WebhookTimeout: d.Webhook.Timeout,
		RelayURL:       normalizeEndpoint(d.Relay.URL),
		RelayTimeout:   d.Relay.Timeout,
	}
	if c.ConversionAPIActive() {
		e.ConversionEndpoint = d.ConversionAPI.Endpoint
		e.ConversionToken = d.ConversionAPI.Token
		e.ConversionEvent = d.ConversionAPI.EventName
		e.ConversionTimeout = d.ConversionAPI.Timeout
	}
	return e
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
