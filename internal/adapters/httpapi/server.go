// Package httpapi sirve el estado del bot: salud, estado del gate y
// posiciones, rendimiento, historial de ciclos y métricas.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alejandrodnm/polyedge/internal/adapters/storage"
	"github.com/alejandrodnm/polyedge/internal/application/engine"
	"github.com/alejandrodnm/polyedge/internal/domain"
)

// StatusReader es la vista del orquestador que consume la API.
type StatusReader interface {
	Status() engine.Status
	Performance(since time.Time) domain.PerformanceSummary
}

// Store es la parte del almacenamiento que consume la API.
type Store interface {
	Ping(ctx context.Context) error
	RecentCycles(ctx context.Context, limit int) ([]storage.CycleRow, error)
}

// Deps agrupa las dependencias del servidor. Store y Metrics son opcionales.
type Deps struct {
	Engine  StatusReader
	Store   Store
	Metrics http.Handler
}

// Server es el servidor HTTP de estado.
type Server struct {
	addr string
	deps Deps
	now  func() time.Time
}

// New crea el servidor; addr vacío lo desactiva en Serve.
func New(addr string, deps Deps) *Server {
	return &Server{addr: addr, deps: deps, now: time.Now}
}

// WithClock sustituye el reloj (tests).
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Router construye las rutas.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.health)
	r.Get("/status", s.status)
	r.Get("/performance", s.performance)
	r.Get("/cycles", s.cycles)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics)
	}
	return r
}

// Serve arranca el servidor y lo para con ctx.
func (s *Server) Serve(ctx context.Context) error {
	if s.addr == "" {
		slog.Info("http api disabled: empty addr")
		return nil
	}
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http api listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("http api stopped")
	return nil
}
