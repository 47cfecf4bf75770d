package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/codecollab/codecollab/analysis"
	"github.com/codecollab/codecollab/assist"
	"github.com/codecollab/codecollab/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GatewayConfig tunes the HTTP surface.
type GatewayConfig struct {
	RateLimit rate.Limit
	RateBurst int
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{RateLimit: 20, RateBurst: 40}
}

type api struct {
	hub          *Hub
	store        store.SessionStore
	analyzer     *analysis.Analyzer
	orchestrator *assist.Orchestrator
	logger       zerolog.Logger
}

// NewHandler builds the gateway: the single entry point routing realtime
// traffic to the hub and request/response calls to the analysis service and
// the assistant orchestrator.
func NewHandler(hub *Hub, st store.SessionStore, analyzer *analysis.Analyzer, orchestrator *assist.Orchestrator, cfg GatewayConfig, logger zerolog.Logger) http.Handler {
	a := &api{
		hub:          hub,
		store:        st,
		analyzer:     analyzer,
		orchestrator: orchestrator,
		logger:       logger.With().Str("component", "gateway").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(RateLimit(cfg.RateLimit, cfg.RateBurst))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", a.handleHealth)
	r.Get("/ws", a.handleWS)
	r.Get("/rooms", a.handleRooms)
	r.Post("/analyze", a.handleAnalyze)
	r.Post("/assist", a.handleAssist)

	return r
}

func (a *api) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := newClient(a.hub, conn, a.logger)
	go client.WritePump()
	go client.ReadPump()
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type roomSummary struct {
	ID        string `json:"id"`
	Version   int    `json:"version"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (a *api) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.store.ListRooms(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list rooms")
		writeError(w, http.StatusInternalServerError, "internal", "failed to list rooms")
		return
	}
	result := make([]roomSummary, 0, len(rooms))
	for _, info := range rooms {
		result = append(result, roomSummary{ID: info.ID, Version: info.Version, UpdatedAt: info.UpdatedAt.UnixMilli()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": result})
}

type analyzeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (a *api) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		analyzeRequests.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	result, err := a.analyzer.Analyze(r.Context(), req.Code, req.Language)
	switch {
	case errors.Is(err, analysis.ErrUnsupportedLanguage):
		analyzeRequests.WithLabelValues("unsupported_language").Inc()
		writeError(w, http.StatusBadRequest, "unsupported_language", err.Error())
		return
	case errors.Is(err, analysis.ErrTimeout):
		analyzeRequests.WithLabelValues("timeout").Inc()
		writeError(w, http.StatusGatewayTimeout, "analysis_timeout", err.Error())
		return
	case err != nil:
		analyzeRequests.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	analyzeRequests.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleAssist(w http.ResponseWriter, r *http.Request) {
	var req assist.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		assistRequests.WithLabelValues("unknown", "bad_request").Inc()
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	resp, err := a.orchestrator.Request(r.Context(), req)
	intent := string(req.Intent)
	switch {
	case errors.Is(err, assist.ErrInvalidIntent):
		assistRequests.WithLabelValues(intent, "invalid_intent").Inc()
		writeError(w, http.StatusBadRequest, "invalid_intent", err.Error())
		return
	case errors.Is(err, assist.ErrCapabilityUnavailable):
		assistRequests.WithLabelValues(intent, "capability_unavailable").Inc()
		writeError(w, http.StatusServiceUnavailable, "capability_unavailable", err.Error())
		return
	case err != nil:
		assistRequests.WithLabelValues(intent, "error").Inc()
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	assistRequests.WithLabelValues(intent, "ok").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError always returns an explicit error payload, never a silent empty
// result.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorPayload{Error: code, Message: message})
}
