package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/logging"
)

// SecurityConfig holds the response security headers.
type SecurityConfig struct {
	CSP            *CSPConfig
	HSTSMaxAge     int
	XFrameOptions  string
	ReferrerPolicy string
	// PermissionsPolicy disables browser features the page never uses.
	PermissionsPolicy string
}

// CSPConfig holds Content Security Policy sources. Scripts and styles also
// receive the per-request nonce.
type CSPConfig struct {
	DefaultSrc              []string
	ScriptSrc               []string
	StyleSrc                []string
	ImgSrc                  []string
	ConnectSrc              []string
	FrameAncestors          []string
	BaseURI                 []string
	FormAction              []string
	ObjectSrc               []string
	UpgradeInsecureRequests bool
}

// DefaultSecurityConfig returns the policy the page needs: its own scripts,
// the wasm client, the pixel script, and the destinations it may call.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSP: &CSPConfig{
			DefaultSrc:     []string{"'self'"},
			ScriptSrc:      []string{"'self'", "'wasm-unsafe-eval'"},
			StyleSrc:       []string{"'self'"},
			ImgSrc:         []string{"'self'", "data:", "https:"},
			ConnectSrc:     []string{"'self'", "ws:", "wss:", "https:"},
			FrameAncestors: []string{"'none'"},
			BaseURI:        []string{"'self'"},
			FormAction:     []string{"'self'"},
			ObjectSrc:      []string{"'none'"},
		},
		XFrameOptions:     "DENY",
		ReferrerPolicy:    "strict-origin-when-cross-origin",
		PermissionsPolicy: "camera=(), microphone=(), geolocation=(), payment=(), usb=()",
	}
}

// SecurityConfigFromAppConfig adds the pixel script origin and, in
// production, HSTS and upgrade-insecure-requests.
func SecurityConfigFromAppConfig(cfg *config.Config) *SecurityConfig {
	sec := DefaultSecurityConfig()
	if cfg.Pixel.AccountID != "" {
		if u, err := url.Parse(cfg.Pixel.ScriptURL); err == nil && u.Host != "" {
			sec.CSP.ScriptSrc = append(sec.CSP.ScriptSrc, u.Scheme+"://"+u.Host)
		}
	}
	if cfg.Server.Environment == "production" {
		sec.HSTSMaxAge = 31536000
		sec.CSP.UpgradeInsecureRequests = true
	}
	return sec
}

// SecurityHeaders sets the security headers on every response and puts a
// fresh CSP nonce in the request context for templ to pick up.
func SecurityHeaders(sec *SecurityConfig) func(http.Handler) http.Handler {
	if sec == nil {
		sec = DefaultSecurityConfig()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce, err := generateNonce()
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			h := w.Header()
			h.Set("Content-Security-Policy", buildCSPHeader(sec.CSP, nonce))
			h.Set("X-Content-Type-Options", "nosniff")
			if sec.XFrameOptions != "" {
				h.Set("X-Frame-Options", sec.XFrameOptions)
			}
			if sec.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", sec.ReferrerPolicy)
			}
			if sec.PermissionsPolicy != "" {
				h.Set("Permissions-Policy", sec.PermissionsPolicy)
			}
			if sec.HSTSMaxAge > 0 && r.TLS != nil {
				h.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", sec.HSTSMaxAge))
			}

			next.ServeHTTP(w, r.WithContext(templ.WithNonce(r.Context(), nonce)))
		})
	}
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func buildCSPHeader(csp *CSPConfig, nonce string) string {
	if csp == nil {
		return ""
	}
	var directives []string
	add := func(name string, values []string) {
		if len(values) > 0 {
			directives = append(directives, name+" "+strings.Join(values, " "))
		}
	}
	withNonce := func(values []string) []string {
		if nonce == "" {
			return values
		}
		return append(slices.Clone(values), "'nonce-"+nonce+"'")
	}

	add("default-src", csp.DefaultSrc)
	add("script-src", withNonce(csp.ScriptSrc))
	add("style-src", withNonce(csp.StyleSrc))
	add("img-src", csp.ImgSrc)
	add("connect-src", csp.ConnectSrc)
	add("object-src", csp.ObjectSrc)
	add("frame-ancestors", csp.FrameAncestors)
	add("base-uri", csp.BaseURI)
	add("form-action", csp.FormAction)
	if csp.UpgradeInsecureRequests {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

// OriginGuard rejects state changing requests whose Origin, or Referer when
// Origin is missing, is neither this host nor an allowed origin. Requests
// carrying neither header come from non-browser clients and pass.
func OriginGuard(allowedOrigins []string, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !sameOrigin(r, allowedOrigins) {
				logger.Warn(r.Context(), nil, "Cross-origin submission blocked",
					"origin", r.Header.Get("Origin"),
					"referer", r.Header.Get("Referer"),
					"ip", getClientIP(r))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sameOrigin(r *http.Request, allowedOrigins []string) bool {
	source := r.Header.Get("Origin")
	if source == "" {
		source = r.Header.Get("Referer")
	}
	if source == "" {
		return true
	}

	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	origin := u.Scheme + "://" + u.Host
	return slices.Contains(allowedOrigins, origin)
}

// getClientIP returns the visitor's address, preferring the first
// X-Forwarded-For hop, then X-Real-IP, then the connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}
