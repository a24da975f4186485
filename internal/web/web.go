package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"fechas/internal/config"
	"fechas/internal/ics"
	appLog "fechas/internal/log"
	"fechas/internal/model"
	"fechas/internal/render"
	"fechas/internal/schedfile"
	"fechas/internal/schedule"
	"fechas/internal/theme"
)

// maxScheduleBytes bounds POST /api/document bodies.
const maxScheduleBytes = 1 << 20

// Server serves the rendered schedule and a small JSON API to update it,
// switch the theme and download the text with the theme written back.
type Server struct {
	cfg     *config.Config
	debug   bool
	mux     *http.ServeMux
	themes  *theme.Active
	parser  schedule.Parser
	fetcher *schedfile.Fetcher

	// mu guards the loaded text and its parsed document.
	mu   sync.RWMutex
	text string
	doc  *model.Document
}

// NewServer constructs a new Server. themes is the process-wide active theme;
// parsing a schedule with a Tema line switches it.
func NewServer(cfg *config.Config, themes *theme.Active, debug bool) *Server {
	s := &Server{
		cfg:     cfg,
		debug:   debug,
		mux:     http.NewServeMux(),
		themes:  themes,
		parser:  schedule.Parser{Themes: themes},
		fetcher: schedfile.NewFetcher(cfg.CacheDir),
		doc:     model.NewDocument(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Load replaces the loaded text and parses it. Parsing may switch the active
// theme, so it runs under mu to keep the theme and the stored document from
// different texts.
func (s *Server) Load(text string) *model.Document {
	s.mu.Lock()
	doc := s.parser.Parse(text)
	s.text = text
	s.doc = doc
	s.mu.Unlock()

	appLog.Info("schedule loaded", "sections", len(doc.Sections), "theme", s.themes.ActiveTheme())
	return doc
}

// Reload reads cfg.SchedulePath (a file or URL) and loads it.
func (s *Server) Reload(ctx context.Context) error {
	text, err := schedfile.Open(ctx, s.fetcher, s.cfg.SchedulePath)
	if err != nil {
		return err
	}
	s.Load(text)
	return nil
}

// Snapshot returns the loaded text and document.
func (s *Server) Snapshot() (string, *model.Document) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text, s.doc
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Fechas", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves s on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/document", s.handleGetDocument)
	s.mux.HandleFunc("POST /api/document", s.handlePostDocument)
	s.mux.HandleFunc("POST /edit", s.handleEditForm)
	s.mux.HandleFunc("GET /api/theme", s.handleGetTheme)
	s.mux.HandleFunc("PUT /api/theme", s.handlePutTheme)
	s.mux.HandleFunc("POST /api/theme", s.handlePostThemeForm)
	s.mux.HandleFunc("GET /api/download", s.handleDownload)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	text, doc := s.Snapshot()
	page := render.NewPage(doc, s.themes.ActiveTheme())
	page.Source = text

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.Execute(w, page); err != nil {
		appLog.Error("render failed", err)
	}
}

// documentResponse is the JSON response shape for /api/document.
type documentResponse struct {
	Theme    string        `json:"theme"`
	Config   *model.Config `json:"config,omitempty"`
	Sections []sectionDTO  `json:"sections"`
}

// sectionDTO is a section plus its dominant category.
type sectionDTO struct {
	Name     string            `json:"name"`
	Links    map[string]string `json:"links"`
	Events   []model.Event     `json:"events"`
	Dominant model.Category    `json:"dominant"`
}

func (s *Server) documentResponse(doc *model.Document) documentResponse {
	resp := documentResponse{
		Theme:    s.themes.ActiveTheme(),
		Config:   doc.Config,
		Sections: make([]sectionDTO, 0, len(doc.Sections)),
	}
	for _, sec := range doc.Sections {
		resp.Sections = append(resp.Sections, sectionDTO{
			Name:     sec.Name,
			Links:    sec.Links,
			Events:   sec.Events,
			Dominant: schedule.DominantCategory(sec.Events),
		})
	}
	return resp
}

func (s *Server) handleGetDocument(w http.ResponseWriter, _ *http.Request) {
	_, doc := s.Snapshot()
	writeJSON(w, http.StatusOK, s.documentResponse(doc))
}

// handlePostDocument replaces the loaded schedule with the request body.
func (s *Server) handlePostDocument(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxScheduleBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "schedule too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	doc := s.Load(string(body))
	writeJSON(w, http.StatusOK, s.documentResponse(doc))
}

// handleEditForm backs the editor on the index page.
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxScheduleBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	s.Load(r.PostFormValue("text"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// themeResponse is the JSON shape for /api/theme.
type themeResponse struct {
	Theme   string   `json:"theme"`
	Allowed []string `json:"allowed"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, themeResponse{Theme: s.themes.ActiveTheme(), Allowed: theme.Allowed})
}

// handlePutTheme switches the active theme. Unknown themes fall back to the
// default, as they do in schedule files.
func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.themes.SwitchTheme(req.Theme)
	s.handleGetTheme(w, r)
}

// handlePostThemeForm backs the theme selector form on the index page.
func (s *Server) handlePostThemeForm(w http.ResponseWriter, r *http.Request) {
	s.themes.SwitchTheme(r.FormValue("theme"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleDownload writes the active theme into the loaded text and sends it as
// an attachment. The loaded text is left as is.
func (s *Server) handleDownload(w http.ResponseWriter, _ *http.Request) {
	active := s.themes.ActiveTheme()
	text, _ := s.Snapshot()
	out := schedule.Serialize(text, active)

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": s.cfg.DownloadName})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", disposition)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)

	appLog.Info("schedule download", "name", s.cfg.DownloadName, "theme", active, "bytes", len(out))
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	_, doc := s.Snapshot()
	out := ics.Export(doc, ics.ExportOptions{Location: s.cfg.Location()})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// handlePreview serves the last captured PNG. http.ServeFile answers 404
// when no capture has run yet.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Capture.Output)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
