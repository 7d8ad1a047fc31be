// Package api serves records and their shares over HTTP.
//
// Routes mirror the host framework's REST resource API:
//
//	GET    /api/resource/{doctype}               list record names
//	GET    /api/resource/{doctype}/{name}        fetch a record
//	PUT    /api/resource/{doctype}/{name}        save a record (runs on_update)
//	DELETE /api/resource/{doctype}/{name}        delete a record (runs on_trash)
//	GET    /api/resource/{doctype}/{name}/shares list DocShare grants
//	GET    /healthz
//	GET    /metrics
//
// Successful responses are {"data": ...}; failures are {"error": "..."}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telimart/telimart/internal/doctype"
	"github.com/telimart/telimart/internal/document"
	"github.com/telimart/telimart/internal/store"
)

// maxBodyBytes bounds PUT request bodies.
const maxBodyBytes = 1 << 20

// GrantLister reads the DocShare grants of a record. *store.Store
// satisfies it.
type GrantLister interface {
	Grants(ctx context.Context, shareDoctype, shareName string) ([]doctype.Grant, error)
}

// Pinger reports store health. *store.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the resource API.
type Handler struct {
	docs   *document.Service
	grants GrantLister
	health Pinger
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(docs *document.Service, grants GrantLister, health Pinger, logger *slog.Logger) *Handler {
	return &Handler{docs: docs, grants: grants, health: health, logger: logger}
}

// RegisterRoutes registers all API routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	res := r.PathPrefix("/api/resource/{doctype}").Subrouter()
	res.Use(h.knownDoctype)

	// Specific routes before parameterized ones.
	res.HandleFunc("/{name}/shares", h.ListShares).Methods(http.MethodGet)
	res.HandleFunc("/{name}", h.GetRecord).Methods(http.MethodGet)
	res.HandleFunc("/{name}", h.PutRecord).Methods(http.MethodPut)
	res.HandleFunc("/{name}", h.DeleteRecord).Methods(http.MethodDelete)
	res.HandleFunc("", h.ListRecords).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
}

// NewRouter builds the full router: resource API, health, metrics from
// gatherer and request tracing.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(tracingMiddleware)
	h.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// knownDoctype rejects doctypes this app does not declare.
func (h *Handler) knownDoctype(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dt := mux.Vars(r)["doctype"]; dt != doctype.IWONumber {
			writeError(w, http.StatusNotFound, "unknown doctype "+dt)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListRecords handles GET /api/resource/{doctype}.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.docs.List(r.Context(), mux.Vars(r)["doctype"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	names := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		names = append(names, map[string]string{"name": rec.Name})
	}
	writeData(w, http.StatusOK, names)
}

// GetRecord handles GET /api/resource/{doctype}/{name}.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rec, err := h.docs.Get(r.Context(), vars["doctype"], vars["name"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

// PutRecord handles PUT /api/resource/{doctype}/{name}. The body is a
// JSON or YAML record document; its name must match the path.
func (h *Handler) PutRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	rec, err := doctype.DecodeRecord(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rec.Name != vars["name"] {
		writeError(w, http.StatusBadRequest, "record name "+rec.Name+" does not match path "+vars["name"])
		return
	}

	saved, err := h.docs.Save(r.Context(), rec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, saved)
}

// DeleteRecord handles DELETE /api/resource/{doctype}/{name}.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.docs.Delete(r.Context(), vars["doctype"], vars["name"]); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "ok")
}

// ListShares handles GET /api/resource/{doctype}/{name}/shares.
func (h *Handler) ListShares(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := h.docs.Get(r.Context(), vars["doctype"], vars["name"]); err != nil {
		h.fail(w, r, err)
		return
	}
	grants, err := h.grants.Grants(r.Context(), vars["doctype"], vars["name"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, grants)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeData(w, http.StatusOK, "ok")
}

// fail maps err onto a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, doctype.ErrInvalidRecord):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
