package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"mediafetch/internal/models"
)

const (
	maxBodyBytes   = 1 << 20
	streamInterval = 500 * time.Millisecond
)

// Orchestrator is the job API the HTTP layer drives.
type Orchestrator interface {
	Scan(ctx context.Context, url string) (*models.VideoInfo, error)
	StartDownload(req models.DownloadRequest) (string, error)
	StartConversion(filename string) (string, error)
	StartTranscription(filename, language string) (string, error)
	Poll(id string) models.ProgressRecord
	Cancel(id string) (bool, error)
	FetchResult(id string) (models.Result, error)
	ListArtifacts() ([]models.Artifact, error)
}

type App struct {
	logger *slog.Logger

	router  *chi.Mux
	jobs    Orchestrator
	metrics http.Handler

	upgrader websocket.Upgrader
}

// NewApp wires the routes. metricsHandler may be nil.
func NewApp(logger *slog.Logger, jobs Orchestrator, metricsHandler http.Handler) *App {
	app := &App{
		logger:  logger,
		router:  chi.NewRouter(),
		jobs:    jobs,
		metrics: metricsHandler,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Timeout(45 * time.Minute))
	a.router.Use(a.corsMiddleware)

	a.router.Route("/api", func(r chi.Router) {
		r.Get("/scan", a.scan)
		r.Get("/downloads", a.listArtifacts)

		r.Post("/download", a.startDownload)
		r.Get("/download/{id}/progress", a.progress)
		r.Post("/download/{id}/cancel", a.cancel)
		r.Get("/download/{id}/file", a.file)

		r.Post("/convert", a.startConversion)
		r.Get("/convert/{id}/progress", a.progress)
		r.Post("/convert/{id}/cancel", a.cancel)
		r.Get("/convert/{id}/file", a.file)

		r.Post("/transcribe", a.startTranscription)
		r.Get("/transcribe/{id}/progress", a.progress)
		r.Get("/transcribe/{id}/file", a.file)
	})

	a.router.Get("/ws/{id}", a.jobWS)
	a.router.Get("/healthz", a.health)
	if a.metrics != nil {
		a.router.Handle("/metrics", a.metrics)
	}
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

func (a *App) scan(w http.ResponseWriter, r *http.Request) {
	info, err := a.jobs.Scan(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, info)
}

func (a *App) startDownload(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.jobs.StartDownload(req)
	a.respondStarted(w, r, id, err)
}

type fileRequest struct {
	Filename string `json:"filename"`
	Language string `json:"language,omitempty"`
}

func (a *App) startConversion(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.jobs.StartConversion(req.Filename)
	a.respondStarted(w, r, id, err)
}

func (a *App) startTranscription(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.jobs.StartTranscription(req.Filename, req.Language)
	a.respondStarted(w, r, id, err)
}

func (a *App) progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.respondJSON(w, http.StatusOK, models.ProgressEvent{ID: id, ProgressRecord: a.jobs.Poll(id)})
}

func (a *App) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := a.jobs.Cancel(id)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]any{"job_id": id, "cancelled": ok})
}

func (a *App) file(w http.ResponseWriter, r *http.Request) {
	res, err := a.jobs.FetchResult(chi.URLParam(r, "id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Name}))
	http.ServeFile(w, r, res.Path)
}

func (a *App) listArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := a.jobs.ListArtifacts()
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]any{"files": artifacts})
}

// jobWS streams progress snapshots until the job reaches a terminal state or
// the client goes away.
func (a *App) jobWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		rec := a.jobs.Poll(id)
		if err := conn.WriteJSON(models.ProgressEvent{ID: id, ProgressRecord: rec}); err != nil {
			return
		}
		if rec.Status.IsTerminal() || rec.Status == models.StatusUnknown {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(rec.Status)))
			return
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid json body"})
		return false
	}
	return true
}

func (a *App) respondStarted(w http.ResponseWriter, r *http.Request, id string, err error) {
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (a *App) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		code = http.StatusNotFound
	default:
		a.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	a.respondJSON(w, code, map[string]string{"detail": strings.TrimSpace(err.Error())})
}

func (a *App) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode json", "error", err)
	}
}

func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
