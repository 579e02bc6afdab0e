// Package server exposes the HTTP surface: the versioned configuration REST
// API, the derived-topology endpoints, and the websocket entry point for
// collaborative sessions.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/netcanvas/netcanvas/pkg/collab"
	"github.com/netcanvas/netcanvas/pkg/errors"
	"github.com/netcanvas/netcanvas/pkg/layout"
	"github.com/netcanvas/netcanvas/pkg/render"
	"github.com/netcanvas/netcanvas/pkg/store"
	"github.com/netcanvas/netcanvas/pkg/topology"
)

// Server wires the store, the collaboration broadcaster and the layout
// engine behind an HTTP router.
type Server struct {
	store       store.Store
	broadcaster *collab.Broadcaster
	layout      layout.Engine
	logger      *log.Logger
}

// New creates a server. A nil logger defaults to the global logger.
func New(st store.Store, b *collab.Broadcaster, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		store:       st,
		broadcaster: b,
		layout:      layout.New(),
		logger:      logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebsocket)

	r.Route("/configurations", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleUpdate)
			r.Delete("/", s.handleDelete)
			r.Get("/versions", s.handleListVersions)
			r.Get("/topology", s.handleTopology)
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// configurationRequest is the create/update request body: a display name and
// the full record set.
type configurationRequest struct {
	Name    string            `json:"name"`
	Records []topology.Record `json:"data"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if configs == nil {
		configs = []topology.Configuration{}
	}
	s.writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req configurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding request body"))
		return
	}
	if req.Name == "" || req.Records == nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "name and data are required"))
		return
	}

	cfg, err := s.store.Create(r.Context(), req.Name, req.Records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("configuration created", "id", cfg.ID, "name", cfg.Name)
	s.writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetLatest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req configurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding request body"))
		return
	}
	if req.Records == nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "data is required"))
		return
	}

	cfg, err := s.store.AppendVersion(r.Context(), chi.URLParam(r, "id"), req.Name, req.Records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("configuration updated", "id", cfg.ID, "version", cfg.VersionNumber)
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("configuration deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.store.ListVersions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, versions)
}

// topologyResponse is the derived graph plus computed layout positions.
type topologyResponse struct {
	topology.Graph
	Positions map[string]topology.Position `json:"positions"`
}

// handleTopology derives the graph from the latest configuration version.
// Query parameters: type filters records by device type before building;
// format selects json (default), dot, svg or png output.
func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetLatest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	records := cfg.Records
	if typ := r.URL.Query().Get("type"); typ != "" {
		filtered := make([]topology.Record, 0, len(records))
		for _, rec := range records {
			if strings.EqualFold(rec.Device.DeviceType, typ) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	graph := topology.Build(records)
	positions := s.layout.Compute(graph)

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		s.writeJSON(w, http.StatusOK, topologyResponse{Graph: graph, Positions: positions})
	case "dot":
		dot := render.ToDOT(graph, render.Options{Positions: positions})
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		w.Write([]byte(dot))
	case "svg":
		dot := render.ToDOT(graph, render.Options{Positions: positions})
		svg, err := render.RenderSVG(dot)
		if err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "rendering svg"))
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write(svg)
	case "png":
		dot := render.ToDOT(graph, render.Options{Positions: positions})
		png, err := render.RenderPNG(dot)
		if err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "rendering png"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	default:
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "unknown format %q", format))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encoding response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(errors.GetCode(err))
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": errors.UserMessage(err)})
}

func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidRoom, errors.ErrCodeInvalidPayload:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeConfigNotFound:
		return http.StatusNotFound
	case errors.ErrCodeTransientIO:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
