//go:build js && wasm

package browser

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"syscall/js"

	"github.com/conneroisu/sitekit/internal/anchor"
	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/logo"
	"github.com/conneroisu/sitekit/internal/presenter"
	"github.com/conneroisu/sitekit/internal/tracking"
)

// Element ids shared with the server's views.
const (
	FormID      = "contactForm"
	SubmitID    = "contact-submit"
	StatusID    = "formMessage"
	HeaderID    = "site-header"
	LogoImageID = "logo-img"
	LogoTextID  = "logo-text"
)

// Page binds the behaviours to the current document.
type Page struct {
	cfg    ClientConfig
	doc    js.Value
	win    js.Value
	logger logging.Logger

	region    *presenter.Region
	submitter *Submitter
	anchors   *anchor.Controller
	logo      *logo.Loader
	pixel     tracking.Pixel

	// Event handlers are kept so they are not released while the page lives.
	funcs []js.Func
}

// Load reads the embedded ClientConfig and returns a page ready to Bind.
func Load(logger logging.Logger) (*Page, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	win := js.Global()
	doc := win.Get("document")

	raw := "{}"
	if el := doc.Call("getElementById", ConfigElementID); truthy(el) {
		raw = el.Get("textContent").String()
	}
	cfg, err := ParseClientConfig([]byte(raw))
	if err != nil {
		return nil, err
	}

	return &Page{
		cfg:       cfg,
		doc:       doc,
		win:       win,
		logger:    logger.WithComponent("browser"),
		region:    presenter.NewRegion(nil),
		submitter: NewSubmitter(cfg, nil, logger),
		anchors: anchor.New(anchor.Options{
			HeaderOffset:    cfg.Scroll.HeaderOffset,
			ClickWindow:     cfg.Scroll.ClickWindow(),
			ShadowThreshold: cfg.Scroll.ShadowThreshold,
		}),
		logo:  logo.NewLoader(cfg.Logo.BaseName, cfg.Logo.Extensions),
		pixel: newPagePixel(cfg.PixelAccountID),
	}, nil
}

// Bind attaches every handler. It is called once, after the DOM is ready.
func (p *Page) Bind(ctx context.Context) {
	p.bindStatus()
	p.bindPixel(ctx)
	p.bindLogo()
	p.bindAnchors()
	p.bindForm(ctx)
	p.logger.Debug(ctx, "Page bound", "dispatch", p.cfg.Dispatch)
}

// Release drops every handler. Used when the client shuts down.
func (p *Page) Release() {
	for _, f := range p.funcs {
		f.Release()
	}
	p.funcs = nil
}

func (p *Page) on(target js.Value, event string, handler func(this js.Value, args []js.Value) any) {
	f := js.FuncOf(handler)
	p.funcs = append(p.funcs, f)
	target.Call("addEventListener", event, f)
}

func (p *Page) byID(id string) js.Value {
	return p.doc.Call("getElementById", id)
}

func truthy(v js.Value) bool {
	return !v.IsUndefined() && !v.IsNull()
}

// bindStatus renders the region whenever it changes, including the clear
// after a success message has been shown for ClearAfter.
func (p *Page) bindStatus() {
	el := p.byID(StatusID)
	if !truthy(el) {
		return
	}
	p.region.OnChange(func(m presenter.Message) {
		el.Set("textContent", m.Text)
		el.Set("className", strings.TrimSpace("status "+string(m.Kind)))
		if !m.IsZero() {
			el.Call("scrollIntoView", map[string]any{"behavior": "smooth", "block": "nearest"})
		}
	})

	// A message rendered by the server after a no-JS post keeps its
	// auto-clear hint.
	if text := el.Get("textContent").String(); strings.TrimSpace(text) != "" {
		kind := presenter.KindError
		if el.Get("classList").Call("contains", string(presenter.KindSuccess)).Bool() {
			kind = presenter.KindSuccess
		}
		resp := SubmitResponse{Kind: kind, Text: strings.TrimSpace(text), ClearAfterMs: attrInt(el, "data-clear-after")}
		p.region.Show(resp.Message())
	}
}

// bindPixel attaches the pixel's global function to the command queue once
// it exists. The loader snippet defines it before the client starts, so the
// window load event is only a fallback.
func (p *Page) bindPixel(ctx context.Context) {
	q, ok := p.pixel.(*tracking.Queue)
	if !ok {
		return
	}
	attach := func() bool {
		if p.win.Get("rdt").Type() != js.TypeFunction {
			return false
		}
		q.Attach(jsPixel{win: p.win, logger: p.logger})
		return true
	}
	if attach() {
		return
	}
	p.on(p.win, "load", func(js.Value, []js.Value) any {
		if !q.Attached() && !attach() {
			p.logger.Debug(ctx, "Pixel unavailable, commands stay queued", "pending", q.Pending())
		}
		return nil
	})
}

// bindLogo walks the logo candidates on load errors, then shows the text
// logo exactly once.
func (p *Page) bindLogo() {
	img, txt := p.byID(LogoImageID), p.byID(LogoTextID)
	if !truthy(img) || !truthy(txt) {
		return
	}

	p.logo.OnFallback(func() {
		img.Get("classList").Call("add", "hidden")
		txt.Get("classList").Call("remove", "hidden")
	})

	// Without a src the server already fell back to text.
	src := img.Call("getAttribute", "src")
	if !truthy(src) || src.String() == "" {
		return
	}

	// Line the loader up with the candidate the server picked.
	current := path.Base(strings.SplitN(src.String(), "?", 2)[0])
	if slices.Contains(p.logo.Candidates(), current) {
		for {
			if name, ok := p.logo.Current(); !ok || name == current {
				break
			}
			p.logo.Fail()
		}
	}

	next := func() {
		if name, ok := p.logo.Fail(); ok {
			img.Set("src", strings.TrimSuffix(p.cfg.Logo.BaseURL, "/")+"/"+name)
		}
	}
	p.on(img, "error", func(js.Value, []js.Value) any {
		next()
		return nil
	})
	p.on(img, "load", func(js.Value, []js.Value) any {
		p.logo.Loaded()
		return nil
	})

	// The image may have failed before the handler was attached.
	if img.Get("complete").Bool() {
		if img.Get("naturalWidth").Int() == 0 {
			next()
		} else {
			p.logo.Loaded()
		}
	}
}

// bindAnchors scrolls to same-page targets below the fixed header and keeps
// the header shadow in sync with the scroll position.
func (p *Page) bindAnchors() {
	links := p.doc.Call("querySelectorAll", `a[href^="#"]`)
	for i := 0; i < links.Length(); i++ {
		link := links.Index(i)
		p.on(link, "click", func(_ js.Value, args []js.Value) any {
			href := link.Call("getAttribute", "href").String()
			target := p.target(href)
			if !truthy(target) {
				return nil
			}
			top := target.Call("getBoundingClientRect").Get("top").Float()
			action, ok := p.anchors.Click(href, top, p.win.Get("pageYOffset").Float())
			if !ok {
				return nil
			}
			args[0].Call("preventDefault")
			p.scroll(action)
			return nil
		})
	}

	p.on(p.win, "hashchange", func(js.Value, []js.Value) any {
		hash := p.win.Get("location").Get("hash").String()
		target := p.target(hash)
		if !truthy(target) {
			return nil
		}
		top := target.Call("getBoundingClientRect").Get("top").Float()
		if action, ok := p.anchors.HashChange(hash, top, p.win.Get("pageYOffset").Float()); ok {
			p.scroll(action)
		}
		return nil
	})

	header := p.byID(HeaderID)
	p.on(p.win, "scroll", func(js.Value, []js.Value) any {
		shadow := p.anchors.Scroll(p.win.Get("pageYOffset").Float())
		if truthy(header) {
			header.Get("classList").Call("toggle", "scrolled", shadow)
		}
		return nil
	})
}

func (p *Page) target(hash string) js.Value {
	if !anchor.IsHashLink(hash) {
		return js.Null()
	}
	return p.byID(strings.TrimPrefix(hash, "#"))
}

func (p *Page) scroll(a anchor.Action) {
	opts := map[string]any{"top": a.Top, "behavior": string(a.Behavior)}
	p.win.Call("scrollTo", opts)
	if a.PushHash != "" {
		p.win.Get("history").Call("pushState", js.Null(), "", a.PushHash)
	}
}

// bindForm takes over submission: the button is disabled with the sending
// label while the request runs, the outcome is shown in the status region,
// and pixel commands from a successful submission are replayed.
func (p *Page) bindForm(ctx context.Context) {
	f := p.byID(FormID)
	if !truthy(f) {
		return
	}
	button := p.byID(SubmitID)

	p.on(f, "submit", func(_ js.Value, args []js.Value) any {
		args[0].Call("preventDefault")
		if truthy(button) && button.Get("disabled").Bool() {
			return nil
		}

		fields := form.Fields{
			Name:    fieldValue(f, "name"),
			Email:   fieldValue(f, "email"),
			Phone:   fieldValue(f, "phone"),
			Message: fieldValue(f, "message"),
		}

		label := ""
		if truthy(button) {
			label = button.Get("textContent").String()
			button.Set("disabled", true)
			if sending := button.Call("getAttribute", "data-sending-label"); truthy(sending) {
				button.Set("textContent", sending.String())
			}
		}
		p.region.Begin()

		// Fetch blocks, so it cannot run on the event callback.
		go func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error(ctx, fmt.Errorf("submit: %v", r), "Submit handler failed")
				}
				if truthy(button) {
					button.Set("disabled", false)
					button.Set("textContent", label)
				}
			}()

			resp := p.submitter.Submit(ctx, fields)
			p.region.Show(resp.Message())
			for _, cmd := range resp.Pixel {
				tracking.Apply(p.pixel, cmd)
			}
			if resp.Reset {
				f.Call("reset")
			}
		}()
		return nil
	})
}

func fieldValue(f js.Value, name string) string {
	el := f.Get("elements").Call("namedItem", name)
	if !truthy(el) {
		return ""
	}
	return el.Get("value").String()
}

func attrInt(el js.Value, name string) int64 {
	v := el.Call("getAttribute", name)
	if !truthy(v) {
		return 0
	}
	n := js.Global().Call("parseInt", v, 10)
	if n.IsNaN() {
		return 0
	}
	return int64(n.Int())
}

// jsPixel forwards commands to the pixel's global function, whose own call
// queue holds them until its script has loaded. Without the global the
// commands are dropped. A throwing pixel is logged and otherwise ignored.
type jsPixel struct {
	win    js.Value
	logger logging.Logger
}

func (p jsPixel) call(command string, args ...any) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn(context.Background(), fmt.Errorf("pixel: %v", r), "Pixel call failed", "command", command)
		}
	}()
	rdt := p.win.Get("rdt")
	if rdt.Type() != js.TypeFunction {
		return
	}
	rdt.Invoke(append([]any{command}, args...)...)
}

func (p jsPixel) Init(accountID string, opts tracking.InitOptions) {
	p.call("init", accountID, map[string]any{
		"optOut":                   opts.OptOut,
		"useDecimalCurrencyValues": opts.UseDecimalCurrencyValues,
	})
}

func (p jsPixel) Track(event string, params map[string]any) {
	if params == nil {
		p.call("track", event)
		return
	}
	p.call("track", event, params)
}
