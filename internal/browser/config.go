// Package browser binds the site's behaviours to the DOM when built for
// js/wasm. ClientConfig is shared with the server, which embeds it in the
// page for the wasm client to read.
package browser

import (
	"encoding/json"
	"time"
)

// ConfigElementID is the id of the script element holding ClientConfig.
const ConfigElementID = "sitekit-config"

// Dispatch modes.
const (
	DispatchServer  = "server"
	DispatchBrowser = "browser"
)

// ClientConfig is what the browser needs to run the page.
type ClientConfig struct {
	// Dispatch is "server" to post to SubmitURL or "browser" to contact the
	// destinations directly.
	Dispatch  string `json:"dispatch"`
	SubmitURL string `json:"submit_url"`

	WebhookURL string `json:"webhook_url,omitempty"`
	RelayURL   string `json:"relay_url,omitempty"`
	TimeoutMs  int64  `json:"timeout_ms,omitempty"`

	Policy         string `json:"policy"`
	Source         string `json:"source"`
	SuccessMessage string `json:"success_message"`
	ClearAfterMs   int64  `json:"clear_after_ms"`

	PixelAccountID string `json:"pixel_account_id,omitempty"`

	Logo   LogoConfig   `json:"logo"`
	Scroll ScrollConfig `json:"scroll"`

	LiveReload bool `json:"live_reload"`
}

// LogoConfig locates the logo candidates.
type LogoConfig struct {
	BaseURL    string   `json:"base_url"`
	BaseName   string   `json:"base_name"`
	Extensions []string `json:"extensions"`
}

// ScrollConfig tunes the anchor controller.
type ScrollConfig struct {
	HeaderOffset    float64 `json:"header_offset"`
	ClickWindowMs   int64   `json:"click_window_ms"`
	ShadowThreshold float64 `json:"shadow_threshold"`
}

// ClearAfter returns ClearAfterMs as a duration.
func (c ClientConfig) ClearAfter() time.Duration {
	return time.Duration(c.ClearAfterMs) * time.Millisecond
}

// Timeout returns TimeoutMs as a duration.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ClickWindow returns the scroll click window as a duration.
func (s ScrollConfig) ClickWindow() time.Duration {
	return time.Duration(s.ClickWindowMs) * time.Millisecond
}

// ParseClientConfig decodes the embedded configuration and fills gaps with
// defaults.
func ParseClientConfig(data []byte) (ClientConfig, error) {
	var cfg ClientConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if cfg.Dispatch == "" {
		cfg.Dispatch = DispatchServer
	}
	if cfg.SubmitURL == "" {
		cfg.SubmitURL = "/api/contact"
	}
	if cfg.Logo.BaseName == "" {
		cfg.Logo.BaseName = "logo"
	}
	if cfg.Logo.BaseURL == "" {
		cfg.Logo.BaseURL = "/"
	}
	return cfg, nil
}
