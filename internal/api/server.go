// Package api exposes the engine's operations as a JSON HTTP API,
// consumed by the external admin surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mstrel/dns-fanout/internal/fanout"
	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/orphan"
	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/settings"
	"github.com/mstrel/dns-fanout/internal/store"
)

type Deps struct {
	Store    *store.Store
	Settings *settings.Service
	Registry *provider.Registry
	Executor *fanout.Executor
	Orphan   *orphan.Manager
	Metrics  *metrics.Metrics
}

type Server struct {
	deps   Deps
	server *http.Server
}

func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps}

	mux := http.NewServeMux()
	mux.Handle("/metrics", deps.Metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/v1/records/multicreate", s.wrap("records_multicreate", s.handleMultiCreate))
	mux.HandleFunc("GET /api/v1/records", s.wrap("records_list", s.handleListRecords))
	mux.HandleFunc("DELETE /api/v1/records/{id}", s.wrap("records_delete", s.handleDeleteRecord))
	mux.HandleFunc("POST /api/v1/records/{id}/grace", s.wrap("records_grace", s.handleExtendGrace))

	mux.HandleFunc("GET /api/v1/settings/{key}", s.wrap("settings_get", s.handleGetSetting))
	mux.HandleFunc("PUT /api/v1/settings/{key}", s.wrap("settings_put", s.handlePutSetting))

	mux.HandleFunc("GET /api/v1/overrides", s.wrap("overrides_list", s.handleListOverrides))
	mux.HandleFunc("POST /api/v1/overrides", s.wrap("overrides_create", s.handleCreateOverride))
	mux.HandleFunc("DELETE /api/v1/overrides/{id}", s.wrap("overrides_delete", s.handleDeleteOverride))

	mux.HandleFunc("GET /api/v1/preserved", s.wrap("preserved_list", s.handleListPreserved))
	mux.HandleFunc("POST /api/v1/preserved", s.wrap("preserved_create", s.handleCreatePreserved))
	mux.HandleFunc("DELETE /api/v1/preserved/{hostname}", s.wrap("preserved_delete", s.handleDeletePreserved))

	mux.HandleFunc("POST /api/v1/discovery", s.wrap("discovery", s.handleDiscovery))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) (int, error)

// wrap adapts a handler returning (status, error) into JSON error
// responses and per-route request metrics. Handlers write their own
// success payloads.
func (s *Server) wrap(route string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := h(w, r)
		if err != nil {
			if code == 0 {
				code = errStatus(err)
			}
			writeJSON(w, code, map[string]string{"error": err.Error()})
		} else if code == 0 {
			code = http.StatusOK
		}
		s.deps.Metrics.IncAPIRequest(route, code)
	}
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, settings.ErrUnknownKey):
		return http.StatusNotFound
	case errors.Is(err, orphan.ErrNotOrphaned), errors.Is(err, store.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, orphan.ErrGraceExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
