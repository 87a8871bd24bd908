package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/KeyesCode/clipforge/internal/clipplan"
	"github.com/KeyesCode/clipforge/internal/highlight"
	"github.com/KeyesCode/clipforge/internal/jobs"
	"github.com/KeyesCode/clipforge/internal/store"
	"github.com/KeyesCode/clipforge/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	serviceName    = "scoring_svc"
	serviceVersion = "1.0.0"
)

// Server exposes the scoring engine over HTTP. The store may be nil
// when the service runs without persistence; endpoints that need it
// answer 503.
type Server struct {
	store        store.DataStore
	pool         *worker.Pool
	jobs         *jobs.Store
	router       chi.Router
	port         int
	busConnected func() bool
}

func NewServer(s store.DataStore, pool *worker.Pool, jobStore *jobs.Store, port int, busConnected func() bool) *Server {
	srv := &Server{
		store:        s,
		pool:         pool,
		jobs:         jobStore,
		port:         port,
		busConnected: busConnected,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)
		r.Post("/score", srv.handleScore)
		r.Post("/chunks/analyze", srv.handleAnalyzeChunk)
		r.Get("/jobs/{jobID}", srv.handleGetJob)
		r.Get("/streams/{streamID}/highlights", srv.handleGetHighlights)
		r.Post("/streams/{streamID}/clips", srv.handleGenerateClips)
		r.Get("/streams/{streamID}/stats", srv.handleStreamStats)
	})

	srv.router = r
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	dbConnected := false
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err == nil {
			dbConnected = true
		} else {
			status = "degraded"
		}
	}

	natsConnected := false
	if s.busConnected != nil {
		natsConnected = s.busConnected()
		if !natsConnected {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             status,
		"service":            serviceName,
		"version":            serviceVersion,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"nats_connected":     natsConnected,
		"database_connected": dbConnected,
		"jobs_active":        s.jobs.Active(),
	})
}

// handleScore accepts a scoring batch. Async by default: the batch is
// queued and a job id returned. With options.sync the ranked result is
// computed inline. An empty chunk list is not an error; it yields an
// empty result immediately.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req worker.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.StreamID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stream_id is required"})
		return
	}

	if req.Options.Sync || len(req.Chunks) == 0 {
		res, err := s.pool.ScoreBatch(r.Context(), req)
		if err != nil {
			slog.Error("sync scoring failed", "stream_id", req.StreamID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	jobID := s.pool.Submit(req)
	slog.Info("scoring batch accepted", "stream_id", req.StreamID, "chunks", len(req.Chunks), "job_id", jobID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(jobs.StatusProcessing),
	})
}

type analyzeChunkRequest struct {
	StreamID string           `json:"stream_id"`
	ChunkID  string           `json:"chunk_id"`
	Data     worker.ChunkData `json:"chunk_data"`
}

type analyzeChunkResponse struct {
	CorrelationID string `json:"correlation_id"`
	highlight.ChunkResult
}

// handleAnalyzeChunk scores one chunk synchronously.
func (s *Server) handleAnalyzeChunk(w http.ResponseWriter, r *http.Request) {
	var req analyzeChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.StreamID == "" || req.ChunkID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stream_id and chunk_id are required"})
		return
	}
	if req.Data.Duration <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chunk_data.duration must be positive"})
		return
	}

	correlationID := uuid.New().String()
	res := s.pool.AnalyzeChunk(r.Context(), req.StreamID,
		worker.ChunkPayload{ChunkID: req.ChunkID, Data: req.Data}, correlationID)

	writeJSON(w, http.StatusOK, analyzeChunkResponse{
		CorrelationID: correlationID,
		ChunkResult:   res,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, ok := s.jobs.Get(jobID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetHighlights(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}

	streamID := chi.URLParam(r, "streamID")
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	minScore := 0.0
	if m := r.URL.Query().Get("min_score"); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			minScore = f
		}
	}

	hls, err := s.store.QueryHighlights(r.Context(), streamID, minScore, limit)
	if err != nil {
		slog.Error("query highlights failed", "stream_id", streamID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, hls)
}

type generateClipsRequest struct {
	MaxClips          int     `json:"max_clips"`
	MinScoreThreshold float64 `json:"min_score_threshold"`
}

// handleGenerateClips builds clip plans from a stream's stored highlight
// scores. The body is optional; defaults apply when absent.
func (s *Server) handleGenerateClips(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")

	var req generateClipsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	correlationID := uuid.New().String()
	plans, err := s.pool.GenerateClips(r.Context(), streamID, clipplan.Options{
		MaxClips: req.MaxClips,
		MinScore: req.MinScoreThreshold,
	}, correlationID)
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrNoStore):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		case errors.Is(err, worker.ErrNoScores):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no highlight scores for stream"})
		default:
			slog.Error("clip generation failed", "stream_id", streamID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stream_id":       streamID,
		"correlation_id":  correlationID,
		"clips_generated": len(plans),
		"clips":           plans,
	})
}

func (s *Server) handleStreamStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "persistence not configured"})
		return
	}

	streamID := chi.URLParam(r, "streamID")

	stats, err := s.store.GetStreamStats(r.Context(), streamID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "stats not found"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
