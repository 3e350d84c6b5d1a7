package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"time"

	"utrcal/internal/config"
	"utrcal/internal/editor"
	"utrcal/internal/grid"
	"utrcal/internal/ics"
	appLog "utrcal/internal/log"
	"utrcal/internal/model"
	"utrcal/internal/notify"
	"utrcal/internal/timetable"
)

const maxBodyBytes = 1 << 20

// PendingLister exposes the alerts still waiting to fire.
type PendingLister interface {
	Pending() []notify.Request
}

// Server is the HTTP port of the timetable: a JSON API for a view shell
// and a server-rendered grid page.
type Server struct {
	cfg     *config.Config
	svc     *timetable.Service
	pending PendingLister
	now     func() time.Time
	mux     *http.ServeMux
	page    *template.Template
	ui      *uiSession
}

//go:embed templates/grid.html
var templatesFS embed.FS

// NewServer constructs a new Server. pending may be nil when alerts are
// disabled.
func NewServer(cfg *config.Config, svc *timetable.Service, pending PendingLister) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		pending: pending,
		now:     time.Now,
		mux:     http.NewServeMux(),
		ui:      newUISession(),
		page:    template.Must(template.New("grid.html").Funcs(templateFuncs).ParseFS(templatesFS, "templates/grid.html")),
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

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
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
			w.Header().Set("WWW-Authenticate", `Basic realm="utrcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run listens on cfg.Listen and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/entries", s.handleListEntries)
	s.mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	s.mux.HandleFunc("GET /api/entries/{id}", s.handleGetEntry)
	s.mux.HandleFunc("PUT /api/entries/{id}", s.handleReplaceEntry)
	s.mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)

	s.mux.HandleFunc("GET /api/grid", s.handleGrid)
	s.mux.HandleFunc("GET /api/alerts", s.handleAlerts)

	s.mux.HandleFunc("GET /api/timetable.ics", s.handleExport)
	s.mux.HandleFunc("POST /api/timetable.ics", s.handleImport)

	s.mux.HandleFunc("GET /api/ui", s.handleUIState)
	s.mux.HandleFunc("POST /api/ui", s.handleUIAction)

	s.mux.HandleFunc("GET /grid", s.handleGridPage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Entries())
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var d editor.Draft
	if !decodeBody(w, r, &d) {
		return
	}
	e, err := s.svc.Add(r.Context(), d)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleReplaceEntry(w http.ResponseWriter, r *http.Request) {
	var d editor.Draft
	if !decodeBody(w, r, &d) {
		return
	}
	e, err := s.svc.Replace(r.Context(), r.PathValue("id"), d)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEntry always answers 204: deleting an unknown id is a no-op.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	s.svc.Remove(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// gridResponse is the JSON response shape for /api/grid.
type gridResponse struct {
	Days      []string        `json:"days"`
	Hours     []int           `json:"hours"`
	Blocks    []grid.Block    `json:"blocks"`
	Conflicts []grid.Conflict `json:"conflicts"`
}

func (s *Server) handleGrid(w http.ResponseWriter, _ *http.Request) {
	layout := s.svc.Grid()
	writeJSON(w, http.StatusOK, gridResponse{
		Days:      model.DayLabels(s.cfg.Locale),
		Hours:     grid.Hours(),
		Blocks:    layout.Blocks(),
		Conflicts: layout.Conflicts(),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := []notify.Request{}
	if s.pending != nil {
		alerts = s.pending.Pending()
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	body, err := ics.Export(s.svc.Entries(), s.now())
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export timetable")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="timetable.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type importResponse struct {
	Created  int                `json:"created"`
	Replaced int                `json:"replaced"`
	Rejected []string           `json:"rejected,omitempty"`
	Entries  []model.ClassEntry `json:"entries"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	items, err := ics.Import(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid iCalendar payload")
		return
	}

	resp := importResponse{Entries: []model.ClassEntry{}}
	for _, it := range items {
		e, created, err := s.svc.Upsert(r.Context(), it.UID, it.Draft)
		if err != nil {
			resp.Rejected = append(resp.Rejected, it.UID)
			continue
		}
		if created {
			resp.Created++
		} else {
			resp.Replaced++
		}
		resp.Entries = append(resp.Entries, e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var verr *editor.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, verr)
	case errors.Is(err, timetable.ErrNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
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
