package main

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/acousland/MacEaves/internal/audio"
	"github.com/acousland/MacEaves/internal/config"
	"github.com/acousland/MacEaves/internal/eventlog"
	"github.com/acousland/MacEaves/internal/monitor"
	"github.com/acousland/MacEaves/internal/notify"
	"github.com/acousland/MacEaves/internal/recording"
	"github.com/acousland/MacEaves/internal/server"
	"github.com/acousland/MacEaves/internal/transcribe"
	"github.com/acousland/MacEaves/internal/types"
	"github.com/acousland/MacEaves/internal/util"
)

// statusInterval is the cadence of full status broadcasts; level samples
// are pushed far more often on the refresh tick.
const statusInterval = 3 * time.Second

// transcriptInterval is how often the transcript is checked for new lines.
const transcriptInterval = 500 * time.Millisecond

var loginTmpl = template.Must(template.New("login").Parse(loginHTML))
var indexTmpl = template.Must(template.New("index").Parse(indexHTML))
var faviconTmpl = template.Must(template.New("favicon").Parse(faviconSVG))

type loginData struct {
	Error      bool
	CSRFToken  string
	Version    string
	Year       int
	AppTitle   string
	PrimaryCSS template.CSS
}

type indexData struct {
	Version    string
	Year       int
	AppTitle   string
	PrimaryCSS template.CSS
}

// Server is an HTTP server that provides the web interface for the meeting
// monitor.
type Server struct {
	config   *config.Config
	catalog  *audio.Catalog
	monitor  *monitor.Coordinator
	engine   *transcribe.Engine
	events   *eventlog.Logger
	sessions *server.SessionManager
	commands *server.CommandHandler
	version  *VersionChecker
}

// NewServer returns a new Server wired to the application components.
func NewServer(cfg *config.Config, catalog *audio.Catalog, mon *monitor.Coordinator, engine *transcribe.Engine, recorder *recording.Manager, notifier *notify.Notifier, events *eventlog.Logger) *Server {
	return &Server{
		config:   cfg,
		catalog:  catalog,
		monitor:  mon,
		engine:   engine,
		events:   events,
		sessions: server.NewSessionManager(),
		commands: server.NewCommandHandler(cfg, catalog, mon, engine, recorder, notifier, events),
		version:  NewVersionChecker(),
	}
}

// handleWebSocket handles bidirectional WebSocket communication for real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Create buffered send channel for thread-safe writes.
	// Only the writer goroutine writes to the connection, preventing race conditions.
	send := make(chan any, 16)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	// Writer goroutine - sole writer to the connection
	go s.runWebSocketWriter(conn, send)

	// Reader goroutine - handles incoming commands
	go s.runWebSocketReader(conn, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(conn server.WebSocketConn, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop pushes level, transcript, and status updates until
// the reader signals disconnect. Level updates ride the metering refresh
// tick; the tick only publishes samples the capture callbacks already
// produced.
func (s *Server) runWebSocketEventLoop(send chan any, done, statusUpdate <-chan struct{}) {
	levelsTicker := time.NewTicker(types.RefreshInterval)
	transcriptTicker := time.NewTicker(transcriptInterval)
	statusTicker := time.NewTicker(statusInterval)
	defer levelsTicker.Stop()
	defer transcriptTicker.Stop()
	defer statusTicker.Stop()

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	// Send initial status
	if !trySend(s.buildWSStatus()) {
		close(send)
		return
	}

	lastTranscript := ""
	for {
		select {
		case <-done:
			close(send)
			return
		case <-statusUpdate:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		case <-levelsTicker.C:
			if !trySend(types.WSLevelsResponse{Type: "levels", Slots: s.monitor.Snapshot()}) {
				close(send)
				return
			}
		case <-transcriptTicker.C:
			lines := s.engine.Lines()
			fp := transcriptFingerprint(lines)
			if fp == lastTranscript {
				continue
			}
			lastTranscript = fp
			if !trySend(types.WSTranscriptResponse{Type: "transcript", Lines: lines}) {
				close(send)
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		}
	}
}

// transcriptFingerprint identifies a transcript revision cheaply so
// unchanged transcripts are not rebroadcast every tick.
func transcriptFingerprint(lines []types.TranscriptLine) string {
	if len(lines) == 0 {
		return ""
	}
	last := lines[len(lines)-1]
	return fmt.Sprintf("%d|%t|%s", len(lines), last.Final, last.Text)
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() types.WSStatusResponse {
	cfg := s.config.Snapshot()
	inputs, outputs := s.catalog.List()

	return types.WSStatusResponse{
		Type:            "status",
		Slots:           s.monitor.Snapshot(),
		InputDevices:    inputs,
		OutputDevices:   outputs,
		Transcribe:      s.engine.Status(),
		Summary:         s.commands.LastSummary(),
		WebhookURL:      cfg.WebhookURL,
		ControlAPIKey:   cfg.ControlAPIKey,
		EventLogPath:    s.events.Path(),
		GraphTenantID:   cfg.GraphTenantID,
		GraphClientID:   cfg.GraphClientID,
		GraphFrom:       cfg.GraphFromAddress,
		GraphRecipients: cfg.GraphRecipients,
		Settings: types.WSSettings{
			InputDevice:  cfg.InputDevice,
			OutputDevice: cfg.OutputDevice,
			Provider:     cfg.Provider,
			Platform:     runtime.GOOS,
		},
		Version: s.version.Info(),
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	auth := s.sessions.AuthMiddleware()

	// Public routes (no auth required)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	// Public static assets (needed for login page styling)
	mux.HandleFunc("/style.css", s.handlePublicStatic)
	mux.HandleFunc("/favicon.svg", s.handleFavicon)

	// REST control API (API key auth, except health)
	mux.HandleFunc("/api/health", s.handleAPIHealth)
	mux.HandleFunc("/api/status", s.apiKeyAuth(s.handleAPIStatus))
	mux.HandleFunc("/api/devices", s.apiKeyAuth(s.handleAPIDevices))
	mux.HandleFunc("/api/transcript", s.apiKeyAuth(s.handleAPITranscript))
	mux.HandleFunc("/api/summary", s.apiKeyAuth(s.handleAPISummary))
	mux.HandleFunc("/api/events", s.apiKeyAuth(s.handleAPIEvents))
	mux.HandleFunc("/api/transcribe/start", s.apiKeyAuth(s.handleAPITranscribeStart))
	mux.HandleFunc("/api/transcribe/stop", s.apiKeyAuth(s.handleAPITranscribeStop))

	// Protected routes
	mux.HandleFunc("/ws", auth(s.handleWebSocket))
	mux.HandleFunc("/", auth(s.handleStatic))

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// handlePublicStatic handles requests for static files without authentication.
func (s *Server) handlePublicStatic(w http.ResponseWriter, r *http.Request) {
	if !serveStaticFile(w, r.URL.Path) {
		http.NotFound(w, r)
	}
}

// handleFavicon serves the favicon with the configured theme color.
func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	cfg := s.config.Snapshot()
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := faviconTmpl.Execute(w, struct{ Color string }{Color: cfg.ColorLight}); err != nil {
		slog.Error("failed to render favicon", "error", err)
	}
}

// serveStaticFile serves a static file by path and reports whether it was found.
func serveStaticFile(w http.ResponseWriter, path string) bool {
	file, ok := staticFiles[path]
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", file.contentType)
	if _, err := w.Write([]byte(file.content)); err != nil {
		slog.Error("failed to write static file", "file", file.name, "error", err)
	}
	return true
}

// handleLogin handles login page display and form submission.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	cfg := s.config.Snapshot()
	data := loginData{
		Version:    Version,
		Year:       time.Now().Year(),
		CSRFToken:  s.sessions.CreateCSRFToken(),
		AppTitle:   cfg.AppTitle,
		PrimaryCSS: template.CSS(util.GenerateBrandCSS(cfg.ColorLight, cfg.ColorDark)),
	}

	if r.Method == http.MethodPost {
		csrfToken := r.FormValue("csrf_token")
		if !s.sessions.ValidateCSRFToken(csrfToken) {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		username := r.FormValue("username")
		password := r.FormValue("password")

		if s.sessions.Login(w, r, username, password, cfg.WebUser, cfg.WebPassword) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		data.Error = true
		data.CSRFToken = s.sessions.CreateCSRFToken() // New token for retry
	}

	w.Header().Set("Content-Type", "text/html")
	if err := loginTmpl.Execute(w, data); err != nil {
		slog.Error("failed to render login page", "error", err)
	}
}

// handleLogout handles user logout requests.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// staticFile is an embedded static file with content type and data.
type staticFile struct {
	contentType string
	content     string
	name        string
}

// staticFiles is a map from URL paths to static file definitions.
var staticFiles = map[string]staticFile{
	"/style.css": {
		contentType: "text/css",
		content:     styleCSS,
		name:        "style.css",
	},
	"/app.js": {
		contentType: "application/javascript",
		content:     appJS,
		name:        "app.js",
	},
	// favicon.svg is served dynamically via handleFavicon
}

// handleStatic handles requests for embedded static web interface files.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	// Serve index.html with dynamic placeholders.
	if path == "/index.html" {
		cfg := s.config.Snapshot()
		w.Header().Set("Content-Type", "text/html")
		if err := indexTmpl.Execute(w, indexData{
			Version:    Version,
			Year:       time.Now().Year(),
			AppTitle:   cfg.AppTitle,
			PrimaryCSS: template.CSS(util.GenerateBrandCSS(cfg.ColorLight, cfg.ColorDark)),
		}); err != nil {
			slog.Error("failed to write index.html", "error", err)
		}
		return
	}

	if serveStaticFile(w, path) {
		return
	}

	http.NotFound(w, r)
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.SetupRoutes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
