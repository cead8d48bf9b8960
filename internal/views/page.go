// Package views renders the site's single page as templ components.
package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/sitekit/internal/browser"
)

// Section is one navigable block of the page.
type Section struct {
	ID    string
	Title string
	Body  string
}

// PageData is everything the page shows.
type PageData struct {
	Title    string
	Tagline  string
	Sections []Section
	// ContactID is the section the contact form is placed in.
	ContactID string

	Logo   LogoData
	Form   FormData
	Pixel  PixelData
	Client browser.ClientConfig

	// WasmEnabled loads the wasm client from /static.
	WasmEnabled bool
	LiveReload  bool
}

const baseStyle = `html{scroll-behavior:smooth;scroll-padding-top:80px}
body{margin:0;font-family:system-ui,sans-serif;color:#1f2933}
.site-header{position:fixed;top:0;left:0;right:0;height:80px;display:flex;align-items:center;justify-content:space-between;padding:0 2rem;background:#fff;transition:box-shadow .2s}
.site-header.scrolled{box-shadow:0 2px 10px rgba(0,0,0,.1)}
.logo img{max-height:48px}
.logo-text{font-weight:700;font-size:1.5rem}
.hidden{display:none}
nav a{margin-left:1.5rem;color:inherit;text-decoration:none}
main{padding-top:80px}
section{padding:4rem 2rem;max-width:960px;margin:0 auto}
.form-group{margin-bottom:1rem;display:flex;flex-direction:column}
.status{margin-top:1rem;padding:.75rem 1rem;border-radius:4px}
.status:empty{display:none}
.status.success{background:#e3f9e5;color:#0e5814}
.status.error{background:#ffe3e3;color:#8a041a}`

// Page renders the whole document.
func Page(d PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}

		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw("<title>")
		h.text(d.Title)
		h.raw("</title><style")
		if nonce := templ.GetNonce(ctx); nonce != "" {
			h.attr("nonce", nonce)
		}
		h.raw(">", baseStyle, "</style>")
		h.component(ctx, PixelSnippet(d.Pixel))
		h.raw("</head><body>")

		h.component(ctx, Header(d.Logo, d.Sections))

		h.raw("<main>")
		if d.Tagline != "" {
			h.raw(`<section class="hero"><h1>`)
			h.text(d.Title)
			h.raw("</h1><p>")
			h.text(d.Tagline)
			h.raw("</p></section>")
		}
		for _, s := range d.Sections {
			h.raw("<section")
			h.attr("id", s.ID)
			h.raw("><h2>")
			h.text(s.Title)
			h.raw("</h2>")
			if s.Body != "" {
				h.raw("<p>")
				h.text(s.Body)
				h.raw("</p>")
			}
			if s.ID == d.ContactID {
				h.component(ctx, ContactForm(d.Form))
			}
			h.raw("</section>")
		}
		h.raw("</main>")

		h.raw(`<footer><p>&copy; `)
		h.text(d.Title)
		h.raw("</p></footer>")

		h.component(ctx, templ.JSONScript(browser.ConfigElementID, d.Client))
		if !d.Form.Message.IsZero() {
			h.component(ctx, StatusReveal())
		}
		if d.WasmEnabled {
			h.component(ctx, WasmLoader())
		}
		if d.LiveReload {
			h.component(ctx, LiveReload())
		}

		h.raw("</body></html>")
		return h.err
	})
}
