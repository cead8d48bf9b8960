package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			setup: func(v *viper.Viper) {
				v.Set("server.host", "localhost")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, PolicyMessage, cfg.Form.Policy)
				assert.Equal(t, DefaultClearAfter, cfg.Form.ClearAfter)
				assert.Equal(t, DefaultSource, cfg.Form.Source)
				assert.Equal(t, []string{"svg", "png", "jpg", "jpeg"}, cfg.Logo.Extensions)
				assert.Equal(t, 80, cfg.Scroll.HeaderOffset)
				assert.Equal(t, time.Second, cfg.Scroll.InternalClickWindow)
				assert.Equal(t, 100, cfg.Scroll.ShadowThreshold)
				assert.True(t, cfg.Server.HotReload)
				assert.True(t, cfg.Server.RateLimit.Enabled)
				assert.False(t, cfg.HasDestination())
				assert.False(t, cfg.ConversionAPIActive())
			},
		},
		{
			name: "destinations and policy",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 3000)
				v.Set("form.policy", "phone")
				v.Set("destinations.webhook.url", "https://script.example.com/exec")
				v.Set("destinations.relay.url", "https://relay.example.com/f/abc")
				v.Set("destinations.relay.timeout", "3s")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, PolicyPhone, cfg.Form.Policy)
				assert.True(t, cfg.HasDestination())
				assert.Equal(t, 3*time.Second, cfg.Destinations.Relay.Timeout)
				assert.Equal(t, DefaultTimeout, cfg.Destinations.Webhook.Timeout)
			},
		},
		{
			name: "placeholders count as unset",
			setup: func(v *viper.Viper) {
				v.Set("destinations.webhook.url", "YOUR_GOOGLE_APPS_SCRIPT_URL_HERE")
				v.Set("pixel.account_id", "YOUR_REDDIT_PIXEL_ID_HERE")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Destinations.Webhook.URL)
				assert.Empty(t, cfg.Pixel.AccountID)
				assert.False(t, cfg.HasDestination())
			},
		},
		{
			name: "comma separated extensions",
			setup: func(v *viper.Viper) {
				v.Set("logo.extensions", "PNG, .svg")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"png", "svg"}, cfg.Logo.Extensions)
			},
		},
		{
			name: "conversion api requires endpoint and token",
			setup: func(v *viper.Viper) {
				v.Set("destinations.conversion_api.enabled", true)
				v.Set("destinations.conversion_api.endpoint", "https://ads.example.com/conversion_events")
				v.Set("destinations.conversion_api.token", "secret")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.ConversionAPIActive())
				assert.Equal(t, DefaultEventName, cfg.Destinations.ConversionAPI.EventName)
			},
		},
		{
			name: "invalid port type",
			setup: func(v *viper.Viper) {
				v.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "invalid policy",
			setup: func(v *viper.Viper) {
				v.Set("form.policy", "both")
			},
			expectError: true,
		},
		{
			name: "invalid webhook url",
			setup: func(v *viper.Viper) {
				v.Set("destinations.webhook.url", "not a url")
			},
			expectError: true,
		},
		{
			name: "http relay in production",
			setup: func(v *viper.Viper) {
				v.Set("server.environment", "production")
				v.Set("destinations.relay.url", "http://relay.example.com/f/abc")
			},
			expectError: true,
		},
		{
			name: "http relay in development",
			setup: func(v *viper.Viper) {
				v.Set("destinations.relay.url", "http://localhost:9000/f/abc")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.HasDestination())
			},
		},
		{
			name: "allowed origin with path",
			setup: func(v *viper.Viper) {
				v.Set("server.allowed_origins", []string{"https://partner.example/app"})
			},
			expectError: true,
		},
		{
			name: "logo dir traversal",
			setup: func(v *viper.Viper) {
				v.Set("logo.dir", "../../etc")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".sitekit.yml")
	content := `
server:
  port: 9090
  host: 127.0.0.1
site:
  title: Acme Analytics
  sections:
    - id: pricing
      title: Pricing
    - id: contact
      title: Contact
destinations:
  webhook:
    url: https://script.example.com/exec
pixel:
  account_id: a2_example
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "Acme Analytics", cfg.Site.Title)
	assert.Equal(t, "Acme Analytics", cfg.Logo.FallbackText)
	require.Len(t, cfg.Site.Sections, 2)
	assert.Equal(t, "pricing", cfg.Site.Sections[0].ID)
	assert.Equal(t, "a2_example", cfg.Pixel.AccountID)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateServerConfig(t *testing.T) {
	assert.NoError(t, validateServerConfig(&ServerConfig{Port: 0, Host: "0.0.0.0"}))
	assert.Error(t, validateServerConfig(&ServerConfig{Port: 70000}))
	assert.Error(t, validateServerConfig(&ServerConfig{Port: 80, Host: "localhost;rm"}))
	assert.Error(t, validateServerConfig(&ServerConfig{Port: 80, StaticDir: "../secret"}))
}

func TestDuplicateSectionIDs(t *testing.T) {
	cfg := Default()
	cfg.Site.Sections = []SectionConfig{{ID: "pricing"}, {ID: "pricing"}}
	assert.Error(t, validateConfig(cfg))

	cfg.Site.Sections = []SectionConfig{{ID: "has space"}}
	assert.Error(t, validateConfig(cfg))
}

func TestIsConfigured(t *testing.T) {
	assert.False(t, IsConfigured(""))
	assert.False(t, IsConfigured("   "))
	assert.False(t, IsConfigured("YOUR_REDDIT_API_TOKEN_HERE"))
	assert.False(t, IsConfigured("null"))
	assert.True(t, IsConfigured("https://example.com"))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty config warns about destinations and pixel", func(t *testing.T) {
		result := Check(Default(), now)
		assert.True(t, result.Valid())
		require.True(t, result.HasWarnings())

		fields := make([]string, 0, len(result.Warnings))
		for _, w := range result.Warnings {
			fields = append(fields, w.Field)
		}
		assert.Contains(t, fields, "destinations")
		assert.Contains(t, fields, "pixel.account_id")
		assert.Contains(t, result.String(), "no webhook or relay configured")
	})

	t.Run("expired conversion token", func(t *testing.T) {
		cfg := Default()
		cfg.Destinations.Webhook.URL = "https://script.example.com/exec"
		cfg.Pixel.AccountID = "a2_example"
		cfg.Destinations.ConversionAPI.Enabled = true
		cfg.Destinations.ConversionAPI.Endpoint = "https://ads.example.com/events"
		cfg.Destinations.ConversionAPI.Token = signedToken(t, now.Add(-time.Hour))

		result := Check(cfg, now)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "destinations.conversion_api.token", result.Warnings[0].Field)
	})

	t.Run("clean config", func(t *testing.T) {
		cfg := Default()
		cfg.Destinations.Relay.URL = "https://relay.example.com/f/abc"
		cfg.Pixel.AccountID = "a2_example"

		result := Check(cfg, now)
		assert.True(t, result.Valid())
		assert.False(t, result.HasWarnings())
		assert.Equal(t, "Configuration is valid.\n", result.String())
	})
}

func TestEndpoints(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DispatchServer, cfg.Form.Dispatch)
	assert.Empty(t, cfg.Endpoints().Destinations())

	cfg.Destinations.Relay.URL = "https://relay.example.com/f/abc"
	cfg.Destinations.ConversionAPI.Endpoint = "https://ads.example.com/events"
	cfg.Destinations.ConversionAPI.Token = "tok"

	e := cfg.Endpoints()
	assert.Equal(t, "https://relay.example.com/f/abc", e.RelayURL)
	assert.Equal(t, DefaultTimeout, e.RelayTimeout)
	assert.Empty(t, e.ConversionEndpoint, "conversion api stays off until enabled")

	cfg.Destinations.ConversionAPI.Enabled = true
	e = cfg.Endpoints()
	assert.Equal(t, "tok", e.ConversionToken)
	assert.Equal(t, DefaultEventName, e.ConversionEvent)
	assert.Len(t, e.Destinations(), 2)
}
