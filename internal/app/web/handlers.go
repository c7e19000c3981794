package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gomarket_import/internal/core/services"
	"gomarket_import/internal/importer"
	"gomarket_import/internal/progress"
	"gomarket_import/pkg/logger"
)

type Importer interface {
	StartImport(ctx context.Context, req importer.Request) (importer.Response, error)
	Cancel(sessionID string) bool
	Catalog() map[string][]importer.AggregateInfo
}

type ProgressSource interface {
	GetProgress(sessionID string) (progress.ImportProgress, bool)
}

type SessionLogReader interface {
	Read(sessionID string) (string, error)
}

type Poster interface {
	Post(ctx context.Context, id string) error
	Unpost(ctx context.Context, id string) error
}

type Matcher interface {
	Start(ctx context.Context, req services.MatchRequest) (services.MatchStarted, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// ImportHandler -- запуск импорта и опрос прогресса сессий.
type ImportHandler struct {
	importer Importer
	progress ProgressSource
	logs     SessionLogReader
	log      logger.Logger
}

func NewImportHandler(imp Importer, progress ProgressSource, logs SessionLogReader, log logger.Logger) *ImportHandler {
	return &ImportHandler{importer: imp, progress: progress, logs: logs, log: log}
}

func (h *ImportHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req importer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		return
	}
	resp, err := h.importer.StartImport(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.log.Log("import session %s started for connection %s: %v", resp.SessionID, req.ConnectionID, req.Aggregates)
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *ImportHandler) Progress(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.progress.GetProgress(r.PathValue("id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *ImportHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.importer.Cancel(id) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	h.log.Warn("import session %s marked cancelled", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportHandler) Log(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		http.Error(w, "Session logs are disabled", http.StatusNotFound)
		return
	}
	text, err := h.logs.Read(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, logger.ErrLogNotFound) {
			http.Error(w, "Session log not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Invalid session id", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (h *ImportHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.importer.Catalog())
}

func (h *ImportHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, importer.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, importer.ErrConnectionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error("start import: %v", err)
		http.Error(w, "Failed to start import", http.StatusInternalServerError)
	}
}

// DocumentHandler -- проведение документов и сопоставление товаров с номенклатурой.
type DocumentHandler struct {
	posting Poster
	matcher Matcher
	log     logger.Logger
}

func NewDocumentHandler(posting Poster, matcher Matcher, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{posting: posting, matcher: matcher, log: log}
}

func (h *DocumentHandler) Post(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.posting.Post)
}

func (h *DocumentHandler) Unpost(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.posting.Unpost)
}

func (h *DocumentHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) error) {
	err := fn(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, services.ErrDocumentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrDocumentDeleted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("%s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Failed to update document", http.StatusInternalServerError)
	}
}

// Match запускает сессию сопоставления товаров с номенклатурой. Тело запроса необязательно.
// Прогресс -- GET /api/products/match/{id}/progress.
func (h *DocumentHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req services.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		return
	}
	started, err := h.matcher.Start(r.Context(), req)
	if err != nil {
		h.log.Error("start matching: %v", err)
		http.Error(w, "Failed to start matching", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, started)
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
