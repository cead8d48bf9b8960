// Package server serves the site page, accepts contact submissions, and
// pushes live reload notifications to connected browsers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/contact"
	"github.com/conneroisu/sitekit/internal/dispatch"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/logo"
	"github.com/conneroisu/sitekit/internal/middleware"
	"github.com/conneroisu/sitekit/internal/presenter"
	"github.com/conneroisu/sitekit/internal/watcher"
)

// SessionCookie carries the visitor's status region id.
const SessionCookie = "sitekit_session"

// Server is the site's HTTP server.
type Server struct {
	config     *config.Config
	logger     logging.Logger
	httpServer *http.Server
	handler    http.Handler

	dispatcher *dispatch.Dispatcher
	service    *contact.Service
	sessions   *presenter.Sessions
	limiter    *RateLimiter
	watcher    *watcher.FileWatcher

	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	done         chan struct{}

	logoMu sync.Mutex
	logo   *logo.Loader

	now          func() time.Time
	afterFunc    presenter.AfterFunc
	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithDispatcher replaces the dispatcher built from the configuration.
func WithDispatcher(d *dispatch.Dispatcher) Option {
	return func(s *Server) { s.dispatcher = d }
}

// WithClock replaces time.Now for submission timestamps and conversion ids.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithAfterFunc replaces the timer used to clear success messages.
func WithAfterFunc(after presenter.AfterFunc) Option {
	return func(s *Server) { s.afterFunc = after }
}

// New builds a server from cfg. Nothing listens until Start.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server: nil config")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Server{
		config:     cfg,
		logger:     logger.WithComponent("server"),
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client, 16),
		unregister: make(chan *websocket.Conn, 16),
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dispatcher == nil {
		s.dispatcher = dispatch.New(logger, cfg.Endpoints().Destinations())
	}
	s.service = contact.NewService(s.dispatcher, contact.Options{
		Policy:         cfg.Form.Policy,
		Source:         cfg.Form.Source,
		SuccessMessage: cfg.Form.SuccessMessage,
		ClearAfter:     cfg.Form.ClearAfter,
		PixelAccountID: cfg.Pixel.AccountID,
		Now:            s.now,
	}, logger)
	s.sessions = presenter.NewSessions(cfg.Server.SessionTTL, s.afterFunc)
	s.limiter = NewRateLimiter(cfg.Server.RateLimit, logger)
	s.logo = logo.NewLoader(cfg.Logo.BaseName, cfg.Logo.Extensions)
	s.resolveLogo(context.Background())

	s.handler = s.buildHandler()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /{file}", s.handleRootFile)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.Server.StaticDir))))
	mux.Handle("POST /contact", s.limiter.Middleware(http.HandlerFunc(s.handleContactForm)))
	mux.Handle("POST /api/contact", s.limiter.Middleware(http.HandlerFunc(s.handleContactAPI)))
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	chain := middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		SecurityHeaders(SecurityConfigFromAppConfig(s.config)),
		middleware.CORS(s.config.Server.AllowedOrigins, s.config.Server.Environment == "development"),
		OriginGuard(s.config.Server.AllowedOrigins, s.logger),
	)
	return chain.Apply(mux)
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	go s.runWebSocketHub(ctx)

	if s.config.Server.HotReload {
		if err := s.setupFileWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "Hot reload disabled")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Listening",
			"addr", s.httpServer.Addr,
			"destinations", s.dispatcher.Destinations(),
			"dispatch", s.config.Form.Dispatch)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}

// Shutdown stops the listener, the watcher, every websocket client and the
// session sweeper. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down")
		close(s.done)

		if s.httpServer != nil {
			if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
				err = fmt.Errorf("http shutdown: %w", shutdownErr)
			}
		}
		if s.watcher != nil {
			if stopErr := s.watcher.Stop(); stopErr != nil {
				s.logger.Warn(ctx, stopErr, "Watcher stop failed")
			}
		}

		s.clientsMutex.Lock()
		for conn, client := range s.clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			delete(s.clients, conn)
		}
		s.clientsMutex.Unlock()

		s.sessions.Stop()
		s.limiter.Stop()
	})
	return err
}

// setupFileWatcher watches the logo and static directories. A change to a
// logo candidate swaps the logo in place; anything else reloads the page.
func (s *Server) setupFileWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(200*time.Millisecond, s.logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	fw.AddFilter(watcher.NoTempFilter)

	dirs := []string{s.config.Logo.Dir}
	if filepath.Clean(s.config.Server.StaticDir) != filepath.Clean(s.config.Logo.Dir) {
		dirs = append(dirs, s.config.Server.StaticDir)
	}
	for _, dir := range dirs {
		if err := fw.AddPath(dir); err != nil {
			fw.Stop()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	logoName := watcher.BaseNameFilter(s.config.Logo.BaseName)
	logoExt := watcher.ExtensionFilter(s.config.Logo.Extensions...)
	isLogo := func(path string) bool { return logoName(path) && logoExt(path) }
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		logoChanged, otherChanged := false, false
		for _, e := range events {
			if isLogo(e.Path) {
				logoChanged = true
			} else {
				otherChanged = true
			}
		}
		if otherChanged {
			s.broadcastMessage(UpdateMessage{Type: MessageFullReload})
			return nil
		}
		if logoChanged {
			state := s.resolveLogo(ctx)
			msg := UpdateMessage{Type: MessageLogoUpdate, Target: "logo"}
			if state == logo.StateLoaded {
				msg.Src = s.logoData().Src
			}
			s.broadcastMessage(msg)
		}
		return nil
	})

	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}
	s.watcher = fw
	s.logger.Info(ctx, "Watching for changes", "dirs", strings.Join(dirs, ","))
	return nil
}

// resolveLogo probes the logo directory from the first candidate again.
func (s *Server) resolveLogo(ctx context.Context) logo.State {
	s.logoMu.Lock()
	defer s.logoMu.Unlock()

	s.logo.Reset()
	state, err := logo.Resolve(ctx, s.logo, logo.DirProber{Dir: s.config.Logo.Dir})
	if err != nil {
		s.logger.Warn(ctx, err, "Logo resolution interrupted")
	}
	s.logger.Debug(ctx, "Logo resolved", "state", state.String())
	return state
}
