// Package validation checks the URLs and origins an operator configures.
// Every value here ends up either in an outbound request or in a page the
// visitor's browser runs, so anything that is not a plain http(s) URL is
// rejected.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// unsafeChars never appear in a legitimate endpoint and would break out of
// an HTML attribute or a JSON string embedded in the page.
const unsafeChars = " \t\r\n\"'<>\\`"

// EndpointURL validates a destination URL. With requireHTTPS set, plain
// http is refused; submissions carry personal data.
func EndpointURL(raw string, requireHTTPS bool) error {
	if i := strings.IndexAny(raw, unsafeChars); i >= 0 {
		return fmt.Errorf("URL contains unsafe character %q", raw[i])
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if requireHTTPS {
			return fmt.Errorf("URL %s must use https", redact(u))
		}
	default:
		return fmt.Errorf("invalid URL scheme %q (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" || u.Hostname() == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}
	if u.User != nil {
		return fmt.Errorf("URL %s must not embed credentials", redact(u))
	}
	return nil
}

// Origin validates an allowed origin such as https://example.com:8443. It
// must be scheme and host only, the form browsers send in Origin headers.
func Origin(origin string) error {
	if origin == "*" {
		return fmt.Errorf("wildcard origin is not allowed; list each origin")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("origin %q has no host", origin)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("origin %q must be scheme://host[:port] only", origin)
	}
	return nil
}

func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
