package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wikipocket/internal/location"
	"wikipocket/internal/metrics"
	"wikipocket/internal/model"
	"wikipocket/internal/repo"
	"wikipocket/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the article repository as a JSON API. It is the serving
// surface that replaces the mobile screens: search, detail, favorites,
// nearby, recents, AI summaries and a live update stream.
type Server struct {
	repo        *repo.Repository
	store       store.Store
	loc         location.Provider
	logger      *zap.Logger
	router      *mux.Router
	server      *http.Server
	recentLimit int
}

func NewServer(rp *repo.Repository, st store.Store, loc location.Provider, logger *zap.Logger, recentLimit int) *Server {
	s := &Server{
		repo:        rp,
		store:       st,
		loc:         loc,
		logger:      logger,
		router:      mux.NewRouter(),
		recentLimit: recentLimit,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/api/search", s.handleSearch).Methods("GET")
	s.router.HandleFunc("/api/articles/{id}", s.handleGetArticle).Methods("GET")
	s.router.HandleFunc("/api/articles/{id}/favorite", s.handleFavorite).Methods("POST")
	s.router.HandleFunc("/api/articles/{id}/summary", s.handleSummary).Methods("POST")
	s.router.HandleFunc("/api/articles/{id}/snapshot", s.handleSnapshot).Methods("GET")
	s.router.HandleFunc("/api/nearby", s.handleNearby).Methods("GET")
	s.router.HandleFunc("/api/recent", s.handleRecent).Methods("GET")
	s.router.HandleFunc("/api/favorites", s.handleFavorites).Methods("GET")
	s.router.HandleFunc("/api/events", s.handleEvents).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start launches the HTTP server
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /api/events streams indefinitely
	}

	s.logger.Info("API server listening", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// instrument tags every request with an id and records log + metrics
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	articles := s.repo.SearchArticles(r.Context(), query)
	s.respondArticles(w, articles)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	pageID, ok := s.pageID(w, r)
	if !ok {
		return
	}

	article, found := s.repo.GetArticle(r.Context(), pageID)
	if !found {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, article)
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	pageID, ok := s.pageID(w, r)
	if !ok {
		return
	}

	var body struct {
		Favorite bool `json:"favorite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !s.repo.ToggleFavorite(r.Context(), pageID, body.Favorite) {
		http.NotFound(w, r)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	pageID, ok := s.pageID(w, r)
	if !ok {
		return
	}

	if !s.repo.GenerateAISummary(r.Context(), pageID) {
		http.NotFound(w, r)
		return
	}

	article, found := s.repo.GetArticle(r.Context(), pageID)
	if !found {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, article)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	pageID, ok := s.pageID(w, r)
	if !ok {
		return
	}

	html, err := s.store.GetSnapshot(r.Context(), pageID)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		s.logger.Error("failed to load snapshot", zap.Int("pageid", pageID), zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")

	var lat, lon float64
	if latStr != "" && lonStr != "" {
		var err error
		if lat, err = strconv.ParseFloat(latStr, 64); err != nil {
			http.Error(w, "invalid lat", http.StatusBadRequest)
			return
		}
		if lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
			http.Error(w, "invalid lon", http.StatusBadRequest)
			return
		}
	} else {
		// No explicit coordinates: fall back to the location provider
		if s.loc == nil || !s.loc.HasPermission() {
			http.Error(w, "no location available", http.StatusUnprocessableEntity)
			return
		}
		coords, found := s.loc.CurrentLocation(r.Context())
		if !found {
			http.Error(w, "no location available", http.StatusUnprocessableEntity)
			return
		}
		lat, lon = coords.Lat, coords.Lon
	}

	articles := s.repo.GetNearbyArticles(r.Context(), lat, lon)
	s.respondArticles(w, articles)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := s.recentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	s.respondArticles(w, s.repo.RecentArticles(r.Context(), limit))
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	s.respondArticles(w, s.repo.FavoriteArticles(r.Context()))
}

// handleEvents streams the pageid of every upserted article as SSE
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, err := s.store.Watch(r.Context())
	if err != nil {
		s.logger.Error("failed to subscribe to updates", zap.Error(err))
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher.Flush()

	for pageID := range updates {
		fmt.Fprintf(w, "data: %d\n\n", pageID)
		flusher.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) pageID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid article id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) respondArticles(w http.ResponseWriter, articles []model.Article) {
	if articles == nil {
		articles = []model.Article{}
	}
	s.respondJSON(w, http.StatusOK, articles)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
