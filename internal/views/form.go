package views

import (
	"context"
	"io"
	"slices"
	"strconv"

	"github.com/a-h/templ"

	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/presenter"
)

// Submit button labels.
const (
	SubmitLabel  = "Send Message"
	SendingLabel = "Sending..."
)

// FormData is the contact form's state for one render.
type FormData struct {
	Action   string
	Required []string
	Values   form.Fields
	Message  presenter.Message
}

type field struct {
	name, label, kind, autocomplete string
}

var contactFields = []field{
	{name: "name", label: "Name", kind: "text", autocomplete: "name"},
	{name: "email", label: "Email", kind: "email", autocomplete: "email"},
	{name: "phone", label: "Phone", kind: "tel", autocomplete: "tel"},
	{name: "message", label: "Message", kind: "textarea"},
}

func (d FormData) value(name string) string {
	switch name {
	case "name":
		return d.Values.Name
	case "email":
		return d.Values.Email
	case "phone":
		return d.Values.Phone
	case "message":
		return d.Values.Message
	}
	return ""
}

// ContactForm renders the form. It posts without JavaScript; the wasm
// client takes over submission when loaded.
func ContactForm(d FormData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<form id="contactForm" method="post"`)
		h.attr("action", d.Action)
		h.raw(">")

		for _, f := range contactFields {
			required := slices.Contains(d.Required, f.name)
			id := "contact-" + f.name

			h.raw(`<div class="form-group"><label`)
			h.attr("for", id)
			h.raw(">")
			h.text(f.label)
			if required {
				h.raw(" *")
			}
			h.raw("</label>")

			if f.kind == "textarea" {
				h.raw("<textarea")
				h.attr("id", id)
				h.attr("name", f.name)
				h.attr("rows", "5")
				h.flag("required", required)
				h.raw(">")
				h.text(d.value(f.name))
				h.raw("</textarea>")
			} else {
				h.raw("<input")
				h.attr("id", id)
				h.attr("name", f.name)
				h.attr("type", f.kind)
				h.attr("autocomplete", f.autocomplete)
				h.attr("value", d.value(f.name))
				h.flag("required", required)
				h.raw(">")
			}
			h.raw("</div>")
		}

		h.raw(`<button type="submit" id="contact-submit"`)
		h.attr("data-sending-label", SendingLabel)
		h.raw(">", SubmitLabel, "</button>")
		h.component(ctx, StatusRegion(d.Message))
		h.raw("</form>")
		return h.err
	})
}

// StatusRegion renders the single message slot next to the form.
func StatusRegion(m presenter.Message) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div id="formMessage" role="status" aria-live="polite"`)
		h.attr("class", classes("status", string(m.Kind)))
		if m.ClearAfter > 0 {
			h.attr("data-clear-after", strconv.FormatInt(m.ClearAfterMillis(), 10))
		}
		h.raw(">")
		h.text(m.Text)
		h.raw("</div>")
		return h.err
	})
}
