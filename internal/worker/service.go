// Package worker implements the hooktraild HTTP service. It hoists the
// rate-limit counters into a long-lived process so throttling actually
// accumulates across hook invocations, and serves aggregate stats over the
// same files the dashboard tails.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hooktrail/internal/config"
	"hooktrail/internal/history"
	"hooktrail/internal/logging"
	"hooktrail/internal/ratelimit"
	"hooktrail/internal/watcher"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Stats are the aggregates served by /api/stats.
type Stats struct {
	Categories map[string]int            `json:"categories"`
	Audit      map[string]int            `json:"audit"`
	RateLimits map[string]ratelimit.Stat `json:"rateLimits"`
	ComputedAt time.Time                 `json:"computedAt"`
}

// Service is the worker state behind the router.
type Service struct {
	cfg     *config.Config
	limiter *ratelimit.Memory
	audit   *history.AuditLogger
	router  chi.Router
	log     zerolog.Logger

	statsMu      sync.RWMutex
	statsCache   *Stats
	statsCaching bool

	watcher *watcher.Watcher
}

// NewService wires the service. The watcher is started by Start, not here.
func NewService(cfg *config.Config) *Service {
	s := &Service{
		cfg:          cfg,
		limiter:      ratelimit.NewMemory(cfg.RateLimitMax, time.Duration(cfg.RateLimitWindowSec)*time.Second),
		audit:        history.NewAuditLogger(cfg.LogRoot),
		router:       chi.NewRouter(),
		log:          logging.Component("worker"),
		statsCaching: true,
	}
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/ratelimit/check", s.handleRateLimitCheck)
	s.router.Get("/api/stats", s.handleStats)
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Service) Start(ctx context.Context) error {
	w, err := watcher.New([]string{s.cfg.HistoryRoot, s.cfg.LogRoot}, s.invalidateStats)
	if err != nil {
		s.log.Warn().Err(err).Msg("stats watcher unavailable, stats will be recomputed per request")
		s.disableStatsCaching()
	} else {
		s.watcher = w
		if err := w.Start(); err != nil {
			s.log.Warn().Err(err).Msg("failed to start stats watcher, stats will be recomputed per request")
			s.disableStatsCaching()
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.cfg.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.log.Info().Int("port", s.cfg.WorkerPort).Msg("worker listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.watcher != nil {
			_ = s.watcher.Stop()
		}
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if s.watcher != nil {
			_ = s.watcher.Stop()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleRateLimitCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hook string `json:"hook"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hook == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing hook name"})
		return
	}
	allowed, err := s.limiter.Allow(req.Hook)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	s.statsMu.RLock()
	cached := s.statsCache
	caching := s.statsCaching
	s.statsMu.RUnlock()

	if !caching {
		writeJSON(w, http.StatusOK, s.computeStats())
		return
	}
	if cached == nil {
		computed := s.computeStats()
		s.statsMu.Lock()
		s.statsCache = computed
		s.statsMu.Unlock()
		cached = computed
	}
	writeJSON(w, http.StatusOK, cached)
}

func (s *Service) invalidateStats() {
	s.statsMu.Lock()
	s.statsCache = nil
	s.statsMu.Unlock()
}

// disableStatsCaching makes every stats request recompute, used when no
// watcher is there to invalidate the cache.
func (s *Service) disableStatsCaching() {
	s.statsMu.Lock()
	s.statsCaching = false
	s.statsCache = nil
	s.statsMu.Unlock()
}

// computeStats walks the history root counting documents per category and
// tallies audit records by severity.
func (s *Service) computeStats() *Stats {
	stats := &Stats{
		Categories: map[string]int{},
		Audit:      map[string]int{},
		RateLimits: s.limiter.Snapshot(),
		ComputedAt: time.Now().UTC(),
	}

	root := s.cfg.HistoryRoot
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		category := strings.SplitN(rel, string(filepath.Separator), 2)[0]
		stats.Categories[category]++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Msg("failed to walk history root")
	}

	records, err := s.audit.Records()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read audit log")
	}
	for _, rec := range records {
		stats.Audit[string(rec.Severity)]++
	}
	return stats
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
