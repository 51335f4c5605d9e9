// Package server exposes the rendered layer catalog over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/model"
	"github.com/sells-group/atlas-cli/internal/store"
)

// Server serves datasets and rendered layers from the catalog.
type Server struct {
	store store.Store
}

// New builds the HTTP handler with routing, CORS, and request logging.
func New(st store.Store, allowedOrigins []string) http.Handler {
	s := &Server{store: st}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/datasets", s.listDatasets)
		r.Get("/layers", s.listLayers)
		r.Get("/layers/{name}", s.getLayer)
		r.Get("/layers/{name}/geojson", s.getLayerGeoJSON)
		r.Get("/layers/{name}/legend", s.getLayerLegend)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	filter := store.DatasetFilter{
		Format: model.DatasetFormat(r.URL.Query().Get("format")),
	}
	datasets, err := s.store.ListDatasets(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list datasets failed", err)
		return
	}
	if datasets == nil {
		datasets = []model.Dataset{}
	}
	respondJSON(w, http.StatusOK, datasets)
}

func (s *Server) listLayers(w http.ResponseWriter, r *http.Request) {
	filter := store.LayerFilter{
		Metric: r.URL.Query().Get("metric"),
	}
	layers, err := s.store.ListLayers(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list layers failed", err)
		return
	}
	if layers == nil {
		layers = []model.Layer{}
	}
	respondJSON(w, http.StatusOK, layers)
}

func (s *Server) getLayer(w http.ResponseWriter, r *http.Request) {
	l, ok := s.lookupLayer(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (s *Server) getLayerGeoJSON(w http.ResponseWriter, r *http.Request) {
	l, ok := s.lookupLayer(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(l.GeoJSON)
}

func (s *Server) getLayerLegend(w http.ResponseWriter, r *http.Request) {
	l, ok := s.lookupLayer(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(l.Legend)
}

// lookupLayer fetches the layer named in the route, writing the error
// response itself when the lookup fails.
func (s *Server) lookupLayer(w http.ResponseWriter, r *http.Request) (*model.Layer, bool) {
	name := chi.URLParam(r, "name")
	l, err := s.store.GetLayer(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get layer failed", err)
		return nil, false
	}
	if l == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "layer not found: " + name})
		return nil, false
	}
	return l, true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string, err error) {
	zap.L().Error(msg, zap.Error(err))
	respondJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
