// Package web serves the results board over HTTP and WebSocket.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/elecciones-pr/tablero/internal/health"
	"github.com/elecciones-pr/tablero/internal/poller"
	"github.com/elecciones-pr/tablero/internal/presenter"
)

//go:embed templates/*.html
var templateFS embed.FS

// SnapshotSource provides the current board state. *poller.Poller
// satisfies it.
type SnapshotSource interface {
	Snapshot() poller.State
}

// EventStream hands out live event subscriptions. *stream.Broadcaster
// satisfies it.
type EventStream interface {
	SubscribeAll() <-chan poller.Event
	Unsubscribe(ch <-chan poller.Event)
}

// HealthReporter reports feed freshness. *health.Monitor satisfies it.
type HealthReporter interface {
	Status() health.Status
}

// Deps wires the server to the rest of the application. Health and
// StaticDir are optional.
type Deps struct {
	Source    SnapshotSource
	Stream    EventStream
	Presenter *presenter.Presenter
	Health    HealthReporter
	StaticDir string
}

// Server is the board's HTTP handler.
type Server struct {
	router chi.Router
	live   *LiveHandler
}

// New builds the router:
//
//	GET /            HTML board
//	GET /api/board   board as JSON
//	GET /ws          live board updates
//	GET /healthz     feed freshness
//
// Any other path is served from StaticDir, where the party logos live.
func New(d Deps) (*Server, error) {
	if d.Source == nil || d.Stream == nil || d.Presenter == nil {
		return nil, fmt.Errorf("web: Source, Stream and Presenter are required")
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}

	board := NewBoardHandler(d.Source, d.Presenter, tmpl)
	live := NewLiveHandler(d.Source, d.Stream, d.Presenter, tmpl)
	healthz := NewHealthHandler(d.Health)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestLogger(newAccessLog()))
		r.Get("/", board.Page)
		r.Get("/api/board", board.JSON)
	})
	// Unlogged: the countdown socket and probes are noisy.
	r.Get("/ws", live.Serve)
	r.Get("/healthz", healthz.Serve)

	if d.StaticDir != "" {
		if info, err := os.Stat(d.StaticDir); err == nil && info.IsDir() {
			r.NotFound(http.FileServer(filesOnly{http.Dir(d.StaticDir)}).ServeHTTP)
		}
	}

	return &Server{router: r, live: live}, nil
}

// filesOnly hides directories, so the static fallback serves files but
// never a directory listing.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close ends all WebSocket sessions. http.Server.Shutdown does not track
// hijacked connections, so call this first.
func (s *Server) Close() {
	s.live.Close()
}
