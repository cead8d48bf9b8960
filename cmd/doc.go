// Package cmd provides the sitekit command-line interface.
//
// # Available Commands
//
//   - serve: run the site server with the no-JS form fallback and live reload
//   - submit: send one contact submission to the configured destinations
//   - logo: resolve which logo format loads from a directory or URL
//   - anchors: check a page's same-page links against its ids
//   - config show|validate: print or check the resolved configuration
//   - version: print build information
//
// # Configuration
//
// Values are resolved in order of precedence:
//
//  1. Command-line flags
//  2. SITEKIT_* environment variables, optionally preloaded from .env
//  3. The file named by --config or SITEKIT_CONFIG_FILE, else .sitekit.yml
//  4. Defaults
package cmd
