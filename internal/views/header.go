package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// LogoData describes the header logo. With Fallback set the image is hidden
// and the text shown.
type LogoData struct {
	Src        string
	Candidates []string
	Alt        string
	Text       string
	Fallback   bool
}

// Header renders the fixed header with the logo and section navigation.
func Header(logo LogoData, sections []Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<header class="site-header" id="site-header">`)
		h.component(ctx, Logo(logo))
		h.raw("<nav>")
		for _, s := range sections {
			h.raw("<a")
			h.attr("href", "#"+s.ID)
			h.raw(">")
			h.text(s.Title)
			h.raw("</a>")
		}
		h.raw("</nav></header>")
		return h.err
	})
}

// Logo renders the logo image and its text fallback side by side; exactly
// one of them is visible.
func Logo(d LogoData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<a class="logo" href="#">`)

		h.raw("<img")
		h.attr("id", "logo-img")
		if d.Src != "" {
			h.attr("src", string(templ.URL(d.Src)))
		}
		h.attr("alt", d.Alt)
		h.attr("data-candidates", strings.Join(d.Candidates, " "))
		h.attr("class", classes("logo-img", hiddenIf(d.Fallback)))
		h.raw(">")

		h.raw("<span")
		h.attr("id", "logo-text")
		h.attr("class", classes("logo-text", hiddenIf(!d.Fallback)))
		h.raw(">")
		h.text(d.Text)
		h.raw("</span></a>")
		return h.err
	})
}

func hiddenIf(hidden bool) string {
	if hidden {
		return "hidden"
	}
	return ""
}
