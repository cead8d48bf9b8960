package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/conneroisu/sitekit/internal/browser"
	"github.com/conneroisu/sitekit/internal/contact"
	"github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/form"
	"github.com/conneroisu/sitekit/internal/logo"
	"github.com/conneroisu/sitekit/internal/presenter"
	"github.com/conneroisu/sitekit/internal/tracking"
	"github.com/conneroisu/sitekit/internal/version"
	"github.com/conneroisu/sitekit/internal/views"
)

const (
	maxFormBytes = 64 << 10

	// WasmFile is the compiled browser client inside the static directory.
	WasmFile = "sitewasm.wasm"

	// MsgMalformed is shown when a submission cannot be decoded.
	MsgMalformed = "We could not read your submission. Please try again."
)

type rateLimitKey struct{}

func withRateLimit(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, rateLimitKey{}, err)
}

func rateLimitError(ctx context.Context) error {
	err, _ := ctx.Value(rateLimitKey{}).(error)
	return err
}

func errMalformed(cause error) *errors.SiteError {
	e := errors.NewValidationError(errors.ErrCodeMalformedRequest, MsgMalformed)
	e.Cause = cause
	return e
}

// statusFor maps a submission error to its HTTP status.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var se *errors.SiteError
	if !stderrors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch se.Code {
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeMalformedRequest:
		return http.StatusBadRequest
	}
	switch se.Type {
	case errors.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeDestination, errors.ErrorTypeNetwork:
		return http.StatusBadGateway
	case errors.ErrorTypeConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// pageState is the per-visitor part of a page render.
type pageState struct {
	session string
	values  form.Fields
	message presenter.Message
}

// session returns the visitor's status region, issuing a cookie when the
// visitor has none or an expired one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*presenter.Region, string) {
	var current string
	if c, err := r.Cookie(SessionCookie); err == nil {
		current = c.Value
	}
	region, id := s.sessions.Region(current)
	if id != current {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(s.config.Server.SessionTTL / time.Second),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return region, id
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	region, session := s.session(w, r)
	msg, _ := region.Current()
	s.renderPage(w, r, http.StatusOK, pageState{session: session, message: msg})
}

// renderPage renders the whole page into a buffer first so a template error
// still produces a clean 500.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, st pageState) {
	ctx := r.Context()

	rec := tracking.NewRecorder()
	tracker := tracking.NewTracker(rec, s.config.Pixel.AccountID, s.now, s.logger)
	tracker.Init(ctx)
	tracker.PageVisit(ctx)
	commands := append(rec.Commands(), s.sessions.TakePixel(st.session)...)

	var buf bytes.Buffer
	if err := views.Page(s.pageData(st, commands)).Render(ctx, &buf); err != nil {
		s.logger.Error(ctx, err, "Page render failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug(ctx, "Page write interrupted", "error", err.Error())
	}
}

func (s *Server) pageData(st pageState, commands []tracking.Command) views.PageData {
	cfg := s.config
	sections := make([]views.Section, len(cfg.Site.Sections))
	for i, sec := range cfg.Site.Sections {
		sections[i] = views.Section{ID: sec.ID, Title: sec.Title, Body: sec.Body}
	}

	return views.PageData{
		Title:     cfg.Site.Title,
		Tagline:   cfg.Site.Tagline,
		Sections:  sections,
		ContactID: s.contactSection(),
		Logo:      s.logoData(),
		Form: views.FormData{
			Action:   "/contact",
			Required: s.service.Validator().Required(),
			Values:   st.values,
			Message:  st.message,
		},
		Pixel: views.PixelData{
			AccountID: cfg.Pixel.AccountID,
			ScriptURL: cfg.Pixel.ScriptURL,
			Commands:  commands,
		},
		Client:      s.clientConfig(),
		WasmEnabled: fileExists(filepath.Join(cfg.Server.StaticDir, WasmFile)),
		LiveReload:  cfg.Server.HotReload,
	}
}

// contactSection is the section named "contact", or the last one.
func (s *Server) contactSection() string {
	sections := s.config.Site.Sections
	for _, sec := range sections {
		if sec.ID == "contact" {
			return sec.ID
		}
	}
	if len(sections) == 0 {
		return ""
	}
	return sections[len(sections)-1].ID
}

func (s *Server) clientConfig() browser.ClientConfig {
	cfg := s.config
	cc := browser.ClientConfig{
		Dispatch:       cfg.Form.Dispatch,
		SubmitURL:      "/api/contact",
		Policy:         cfg.Form.Policy,
		Source:         cfg.Form.Source,
		SuccessMessage: cfg.Form.SuccessMessage,
		ClearAfterMs:   cfg.Form.ClearAfter.Milliseconds(),
		PixelAccountID: cfg.Pixel.AccountID,
		Logo: browser.LogoConfig{
			BaseURL:    "/",
			BaseName:   cfg.Logo.BaseName,
			Extensions: cfg.Logo.Extensions,
		},
		Scroll: browser.ScrollConfig{
			HeaderOffset:    float64(cfg.Scroll.HeaderOffset),
			ClickWindowMs:   cfg.Scroll.InternalClickWindow.Milliseconds(),
			ShadowThreshold: float64(cfg.Scroll.ShadowThreshold),
		},
		LiveReload: cfg.Server.HotReload,
	}
	// Destination URLs only leave the server when the browser dispatches.
	if cfg.Form.Dispatch == browser.DispatchBrowser {
		endpoints := cfg.Endpoints()
		cc.WebhookURL = endpoints.WebhookURL
		cc.RelayURL = endpoints.RelayURL
		cc.TimeoutMs = endpoints.RelayTimeout.Milliseconds()
	}
	return cc
}

func (s *Server) logoData() views.LogoData {
	s.logoMu.Lock()
	defer s.logoMu.Unlock()

	candidates := s.logo.Candidates()
	for i, c := range candidates {
		candidates[i] = "/" + c
	}
	d := views.LogoData{
		Candidates: candidates,
		Alt:        s.config.Logo.AltText,
		Text:       s.config.Logo.FallbackText,
	}
	if name, ok := s.logo.Current(); ok && s.logo.State() == logo.StateLoaded {
		d.Src = "/" + name
	} else {
		d.Fallback = true
	}
	return d
}

// handleRootFile serves logo candidates from the logo directory. Every other
// top-level name is a 404.
func (s *Server) handleRootFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if !slices.Contains(s.logo.Candidates(), name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filepath.Join(s.config.Logo.Dir, name))
}

// handleContactForm is the no-JavaScript submission path. Success redirects
// back to the form so a reload cannot resubmit; failure renders the page
// again with the visitor's input and the error.
func (s *Server) handleContactForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	region, session := s.session(w, r)
	region.Begin()

	if err := rateLimitError(ctx); err != nil {
		s.renderFailure(w, r, region, session, form.Fields{}, s.service.Reject(ctx, err))
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderFailure(w, r, region, session, form.Fields{}, s.service.Reject(ctx, errMalformed(err)))
		return
	}

	fields := fieldsFromValues(r.PostForm)
	px := tracking.NewRecorder()
	result := s.service.Submit(ctx, fields, px)
	if !result.OK() {
		s.renderFailure(w, r, region, session, fields, result)
		return
	}

	region.Show(result.Message)
	s.sessions.AddPixel(session, px.Commands())
	http.Redirect(w, r, "/#"+s.contactSection(), http.StatusSeeOther)
}

func (s *Server) renderFailure(w http.ResponseWriter, r *http.Request, region *presenter.Region, session string, fields form.Fields, result contact.Result) {
	region.Show(result.Message)
	s.renderPage(w, r, statusFor(result.Err), pageState{
		session: session,
		values:  fields,
		message: result.Message,
	})
}

func fieldsFromValues(v url.Values) form.Fields {
	return form.Fields{
		Name:    v.Get("name"),
		Email:   v.Get("email"),
		Phone:   v.Get("phone"),
		Message: v.Get("message"),
	}
}

// SubmitResponse is the JSON answer to POST /api/contact.
type SubmitResponse = browser.SubmitResponse

// handleContactAPI accepts JSON, urlencoded or multipart submissions from the
// wasm client and other callers.
func (s *Server) handleContactAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	if err := rateLimitError(ctx); err != nil {
		s.writeSubmit(w, s.service.Reject(ctx, err), nil)
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		s.writeSubmit(w, s.service.Reject(ctx, errMalformed(err)), nil)
		return
	}

	px := tracking.NewRecorder()
	s.writeSubmit(w, s.service.Submit(ctx, fields, px), px.Commands())
}

func decodeFields(r *http.Request) (form.Fields, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return form.Fields{}, err
	}

	switch mediaType {
	case "application/json":
		var fields form.Fields
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return form.Fields{}, err
		}
		return fields, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return form.Fields{}, err
		}
		return fieldsFromValues(r.PostForm), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return form.Fields{}, err
		}
		return fieldsFromValues(r.PostForm), nil
	default:
		return form.Fields{}, stderrors.New("unsupported content type " + mediaType)
	}
}

func (s *Server) writeSubmit(w http.ResponseWriter, result contact.Result, pixel []tracking.Command) {
	writeJSON(w, statusFor(result.Err), browser.NewSubmitResponse(result, pixel))
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	Destinations []string  `json:"destinations"`
	Dispatch     string    `json:"dispatch"`
	Logo         string    `json:"logo"`
	Sessions     int       `json:"sessions"`
	Clients      int       `json:"clients"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.logoMu.Lock()
	logoState := s.logo.State()
	s.logoMu.Unlock()

	destinations := s.dispatcher.Destinations()
	status := "ok"
	if !s.config.HasDestination() {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       status,
		Version:      version.GetVersion(),
		Destinations: destinations,
		Dispatch:     s.config.Form.Dispatch,
		Logo:         logoState.String(),
		Sessions:     s.sessions.Len(),
		Clients:      s.ClientCount(),
		Timestamp:    s.now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
