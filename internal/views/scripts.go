package views

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/sitekit/internal/tracking"
)

// PixelData configures the ads pixel. Commands are replayed on the pixel
// once the page loads.
type PixelData struct {
	AccountID string
	ScriptURL string
	Commands  []tracking.Command
}

// PixelCommandsID is the id of the script element holding pixel commands.
const PixelCommandsID = "sitekit-pixel"

// pixelLoader installs the pixel's call queue and loads its script
// asynchronously; %s is the JSON encoded script URL.
const pixelLoader = `!function(w,d){if(!w.rdt){var p=w.rdt=function(){p.sendEvent?p.sendEvent.apply(p,arguments):p.callQueue.push(arguments)};p.callQueue=[];var t=d.createElement("script");t.src=%s,t.async=!0;var s=d.getElementsByTagName("script")[0];s.parentNode.insertBefore(t,s)}}(window,document);`

const pixelReplay = `(function(){var el=document.getElementById("` + PixelCommandsID + `");if(!el||!window.rdt)return;JSON.parse(el.textContent).forEach(function(c){window.rdt.apply(null,[c.command].concat(c.args||[]))})})();`

// PixelSnippet renders the pixel loader and replays the commands. It renders
// nothing without an account id.
func PixelSnippet(d PixelData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if d.AccountID == "" {
			return nil
		}
		src, err := json.Marshal(d.ScriptURL)
		if err != nil {
			return err
		}

		h := &html{w: w}
		h.openScript(ctx)
		h.raw(fmt.Sprintf(pixelLoader, src))
		h.raw("</script>")
		h.component(ctx, templ.JSONScript(PixelCommandsID, d.Commands))
		h.openScript(ctx)
		h.raw(pixelReplay)
		h.raw("</script>")
		return h.err
	})
}

// WasmLoader starts the wasm client served from /static.
func WasmLoader() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.openScript(ctx, "src", "/static/wasm_exec.js")
		h.raw("</script>")
		h.openScript(ctx)
		h.raw(`(function(){if(!WebAssembly||!window.Go)return;var go=new Go();WebAssembly.instantiateStreaming(fetch("/static/sitewasm.wasm"),go.importObject).then(function(r){go.run(r.instance)}).catch(function(e){console.warn("sitekit: wasm client unavailable",e)})})();`)
		h.raw("</script>")
		return h.err
	})
}

// StatusReveal scrolls a server rendered status message into view, such as
// the one shown after a plain form post.
func StatusReveal() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.openScript(ctx)
		h.raw(`(function(){var el=document.getElementById("formMessage");if(el&&el.textContent.trim()){el.scrollIntoView({behavior:"smooth",block:"nearest"})}})();`)
		h.raw("</script>")
		return h.err
	})
}

// LiveReload connects to the server's websocket and reloads the page or swaps
// the logo when told to.
func LiveReload() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.openScript(ctx)
		h.raw(`(function(){var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/ws");ws.onmessage=function(e){var m=JSON.parse(e.data);if(m.type==="full_reload"){location.reload()}else if(m.type==="logo_update"){var img=document.getElementById("logo-img"),txt=document.getElementById("logo-text");if(!img||!txt)return;if(m.src){img.src=m.src+"?v="+Date.now();img.classList.remove("hidden");txt.classList.add("hidden")}else{img.classList.add("hidden");txt.classList.remove("hidden")}}}})();`)
		h.raw("</script>")
		return h.err
	})
}
