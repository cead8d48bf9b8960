package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/conneroisu/sitekit/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string   `json:"field" yaml:"field"`
	Message     string   `json:"message" yaml:"message"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError `json:"errors" yaml:"errors"`
	Warnings []ValidationError `json:"warnings" yaml:"warnings"`
}

// Valid reports whether no errors were found.
func (vr *ValidationResult) Valid() bool {
	return len(vr.Errors) == 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	if builder.Len() == 0 {
		return "Configuration is valid.\n"
	}

	return builder.String()
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := structValidator.Struct(config); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateLogoConfig(&config.Logo); err != nil {
		return fmt.Errorf("logo config: %w", err)
	}

	if err := validateEndpoints(config); err != nil {
		return fmt.Errorf("endpoints: %w", err)
	}

	seen := make(map[string]bool, len(config.Site.Sections))
	for _, section := range config.Site.Sections {
		if strings.ContainsAny(section.ID, " #\"'<>") {
			return fmt.Errorf("site config: section id %q is not a valid fragment", section.ID)
		}
		if seen[section.ID] {
			return fmt.Errorf("site config: duplicate section id %q", section.ID)
		}
		seen[section.ID] = true
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %q", char)
			}
		}
	}

	if config.StaticDir != "" {
		if err := validatePath(config.StaticDir); err != nil {
			return fmt.Errorf("static_dir: %w", err)
		}
	}

	return nil
}

// validateEndpoints checks every configured URL. Production requires https
// for the destinations, which receive the visitor's personal data.
func validateEndpoints(config *Config) error {
	production := config.Server.Environment == "production"
	d := config.Destinations
	endpoints := []struct {
		name, url string
	}{
		{"webhook.url", d.Webhook.URL},
		{"relay.url", d.Relay.URL},
		{"conversion_api.endpoint", d.ConversionAPI.Endpoint},
	}
	for _, e := range endpoints {
		if !IsConfigured(e.url) {
			continue
		}
		if err := validation.EndpointURL(e.url, production); err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
	}

	if err := validation.EndpointURL(config.Pixel.ScriptURL, production); err != nil {
		return fmt.Errorf("pixel.script_url: %w", err)
	}
	for _, origin := range config.Server.AllowedOrigins {
		if err := validation.Origin(origin); err != nil {
			return fmt.Errorf("server.allowed_origins: %w", err)
		}
	}
	return nil
}

func validateLogoConfig(config *LogoConfig) error {
	if err := validatePath(config.Dir); err != nil {
		return fmt.Errorf("dir: %w", err)
	}
	if strings.ContainsAny(config.BaseName, `/\`) || strings.Contains(config.BaseName, "..") {
		return fmt.Errorf("base_name must be a plain file name: %s", config.BaseName)
	}
	for _, ext := range config.Extensions {
		if ext == "" || strings.ContainsAny(ext, `/\. `) {
			return fmt.Errorf("invalid extension %q", ext)
		}
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// Check runs validateConfig and adds the non-fatal findings an operator
// should know about before deploying.
func Check(config *Config, now time.Time) *ValidationResult {
	result := &ValidationResult{}

	if err := validateConfig(config); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "config",
			Message: err.Error(),
		})
	}

	if !config.HasDestination() {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "destinations",
			Message: "no webhook or relay configured; every submission will fail",
			Suggestions: []string{
				"set destinations.webhook.url (SITEKIT_DESTINATIONS_WEBHOOK_URL)",
				"or set destinations.relay.url (SITEKIT_DESTINATIONS_RELAY_URL)",
			},
		})
	}

	api := config.Destinations.ConversionAPI
	if api.Enabled && !config.ConversionAPIActive() {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "destinations.conversion_api",
			Message:     "enabled but endpoint or token is missing; it will be skipped",
			Suggestions: []string{"set destinations.conversion_api.endpoint and SITEKIT_DESTINATIONS_CONVERSION_API_TOKEN"},
		})
	}
	if IsConfigured(api.Token) {
		if exp, ok := TokenExpiry(api.Token); ok && exp.Before(now) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:       "destinations.conversion_api.token",
				Message:     fmt.Sprintf("token expired at %s", exp.UTC().Format(time.RFC3339)),
				Suggestions: []string{"generate a new conversion access token"},
			})
		}
	}

	if !IsConfigured(config.Pixel.AccountID) {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "pixel.account_id",
			Message: "no pixel account; conversions will not be tracked",
		})
	}

	return result
}

// TokenExpiry reads the exp claim of a JWT access token without verifying
// its signature. ok is false when the token is not a JWT or has no exp.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
