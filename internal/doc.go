// Package internal contains the implementation packages for sitekit.
//
// These packages are unavailable to external modules. The sitekit CLI and
// the wasm client in cmd/sitewasm are their only consumers.
//
// # Package Organization
//
//   - anchor: in-page link discovery and smooth scrolling state
//   - browser: client configuration, submission and DOM binding for wasm
//   - config: viper backed configuration with validation
//   - contact: one contact submission from input to displayed message
//   - dispatch: webhook, relay and conversion destinations with role policy
//   - errors: typed errors carrying visitor safe messages
//   - form: field validation and submission records
//   - logging: structured logging on log/slog
//   - logo: logo candidate resolution with text fallback
//   - middleware: handler chains for logging, recovery and request IDs
//   - presenter: status messages and the auto clearing status region
//   - server: HTTP server, security headers, rate limiting and live reload
//   - tracking: conversion pixel commands
//   - validation: endpoint URL and origin checks
//   - version: build metadata
//   - views: templ page rendering
//   - watcher: debounced file watching for live reload
//   - testutils: fake destinations and file helpers for tests
//
// # Request Flow
//
// A POST to /contact passes the middleware chain and origin guard, is
// throttled per client, then handed to contact.Service. The service
// validates fields, builds a form.Record and dispatches it. Only a
// successful dispatch records a Lead conversion. The result is rendered as
// HTML or returned as a browser.SubmitResponse.
package internal
