// Package server exposes the catalog pipeline over a thin JSON API. The
// envelope is deliberately minimal; richer client bindings sit in front of
// this process, not inside it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/snapetech/xtreamcat/internal/cache"
	"github.com/snapetech/xtreamcat/internal/catalog"
	"github.com/snapetech/xtreamcat/internal/config"
	"github.com/snapetech/xtreamcat/internal/resolver"
	"github.com/snapetech/xtreamcat/internal/xtream"
)

// Server wires cache, loader and resolver behind HTTP routes.
type Server struct {
	cfg       *config.Config
	snapshots *cache.SnapshotCache
	loader    *xtream.Loader
	resolver  *resolver.Resolver
	log       logrus.FieldLogger
}

// New returns a server over the shared pipeline components.
func New(cfg *config.Config, snapshots *cache.SnapshotCache, loader *xtream.Loader, res *resolver.Resolver, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{cfg: cfg, snapshots: snapshots, loader: loader, resolver: res, log: log}
}

// Router builds the route table. The opaque account token prefixes every
// catalog route; it never appears in logs.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/{token}/catalog/{kind}", s.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/{token}/meta/{id}", s.handleMeta).Methods(http.MethodGet)
	r.HandleFunc("/{token}/stream/{id}", s.handleStream).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// index decodes the token and returns the (possibly freshly loaded) search
// index for its account.
func (s *Server) index(ctx context.Context, token string) (config.Account, *catalog.Index, error) {
	acct, err := config.DecodeToken(token)
	if err != nil {
		return config.Account{}, nil, err
	}
	key := cache.Key(acct.BaseURL, acct.Username)
	idx, err := s.snapshots.GetOrLoad(ctx, key, func(ctx context.Context) (*catalog.Snapshot, error) {
		return s.loader.Load(ctx, acct)
	})
	if err != nil {
		return config.Account{}, nil, err
	}
	return acct, idx, nil
}

type catalogResponse struct {
	Kind       catalog.Kind   `json:"kind"`
	Categories []string       `json:"categories"`
	Items      []catalog.Item `json:"items"`
	Total      int            `json:"total"`
	Offset     int            `json:"offset"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := catalog.ParseKind(vars["kind"])
	if !ok {
		httpError(w, http.StatusBadRequest, "unknown kind")
		return
	}
	_, idx, err := s.index(r.Context(), vars["token"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	q := r.URL.Query()
	items := idx.Query(kind, q.Get("category"), q.Get("search"))
	total := len(items)
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	items = catalog.Page(items, offset, limit)
	writeJSON(w, catalogResponse{
		Kind:       kind,
		Categories: idx.Snapshot().Categories[kind],
		Items:      items,
		Total:      total,
		Offset:     offset,
	})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	_, idx, err := s.index(r.Context(), vars["token"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	item, ok := idx.Snapshot().ItemByID(vars["id"])
	if !ok {
		httpError(w, http.StatusNotFound, "unknown id")
		return
	}
	writeJSON(w, item)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	acct, idx, err := s.index(r.Context(), vars["token"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	streamURL, err := s.resolver.Resolve(r.Context(), acct, idx.Snapshot(), vars["id"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	http.Redirect(w, r, streamURL, http.StatusFound)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrConfig):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrUpstream):
		s.log.WithError(err).Warn("upstream failure")
		httpError(w, http.StatusBadGateway, "upstream unavailable")
	default:
		s.log.WithError(err).Error("request failed")
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
