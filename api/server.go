// Package api provides the HTTP REST API server for captrades.
//
// It exposes read endpoints for trades, legislators, tickers, and summary
// statistics, plus a WebSocket stream carrying ingest reports.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/captrades/captrades/internal/config"
	"github.com/captrades/captrades/internal/store"
)

const defaultPageSize = 100

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	store  store.Store
	wsHub  *WSHub
	log    zerolog.Logger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, st store.Store, log zerolog.Logger) *Server {
	srv := &Server{
		cfg:   cfg,
		store: st,
		wsHub: NewWSHub(),
		log:   log.With().Str("component", "api").Logger(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// BroadcastReport pushes an ingest report to every WebSocket subscriber.
func (s *Server) BroadcastReport(report any) {
	s.wsHub.Broadcast(WSMessage{Type: "ingest_report", Data: report})
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()
	s.log.Info().Str("addr", addr).Msg("API listening")

	<-done
	s.log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/trades", s.handleTrades)

		r.Get("/legislators", s.handleLegislators)
		r.Get("/legislators/{name}/trades", s.handleLegislatorTrades)

		r.Get("/tickers/{symbol}", s.handleTicker)
		r.Get("/tickers/{symbol}/trades", s.handleTickerTrades)

		r.Get("/stats/summary", s.handleSummary)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PagedTrades is a page of trades plus the unpaged total.
type PagedTrades struct {
	Count   int64 `json:"count"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Results any   `json:"results"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	filter := tradeFilterFromQuery(r)
	s.writeTradePage(w, r, filter)
}

func (s *Server) handleLegislators(w http.ResponseWriter, r *http.Request) {
	filter := store.LegislatorFilter{
		NameContains: r.URL.Query().Get("search"),
		// Profiles are only interesting once a member has traded.
		TradedOnly: r.URL.Query().Get("all") != "true",
	}
	filter.Limit, filter.Offset = pageParams(r)

	legislators, err := s.store.Legislators(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("list legislators")
		writeError(w, http.StatusInternalServerError, "failed to list legislators")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: legislators})
}

func (s *Server) handleLegislatorTrades(w http.ResponseWriter, r *http.Request) {
	filter := tradeFilterFromQuery(r)
	filter.NameContains = chi.URLParam(r, "name")
	s.writeTradePage(w, r, filter)
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	ticker, err := s.store.TickerBySymbol(r.Context(), symbol)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown ticker "+symbol)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("ticker lookup")
		writeError(w, http.StatusInternalServerError, "ticker lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: ticker})
}

func (s *Server) handleTickerTrades(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if _, err := s.store.TickerBySymbol(r.Context(), symbol); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown ticker "+symbol)
		return
	}

	filter := tradeFilterFromQuery(r)
	filter.TickerSymbol = symbol
	s.writeTradePage(w, r, filter)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.SummaryStats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("summary stats")
		writeError(w, http.StatusInternalServerError, "failed to load summary stats")
		return
	}

	if window, err := strconv.Atoi(r.URL.Query().Get("window")); err == nil && window > 0 {
		filtered := stats[:0]
		for _, stat := range stats {
			if stat.Window == window {
				filtered = append(filtered, stat)
			}
		}
		stats = filtered
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: stats})
}

func (s *Server) writeTradePage(w http.ResponseWriter, r *http.Request, filter store.TradeFilter) {
	count, err := s.store.CountTrades(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("count trades")
		writeError(w, http.StatusInternalServerError, "failed to count trades")
		return
	}

	trades, err := s.store.Trades(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("list trades")
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: PagedTrades{
			Count:   count,
			Limit:   filter.Limit,
			Offset:  filter.Offset,
			Results: trades,
		},
	})
}

// ============================================================
// Helpers
// ============================================================

func tradeFilterFromQuery(r *http.Request) store.TradeFilter {
	q := r.URL.Query()
	filter := store.TradeFilter{
		NameContains:    q.Get("name"),
		TransactionType: q.Get("transactionType"),
		// The ticker filter takes the same dash-for-dot form as the
		// /tickers/{symbol} path segment.
		TickerSymbol: strings.ReplaceAll(q.Get("ticker"), "-", "."),
	}
	filter.Limit, filter.Offset = pageParams(r)
	return filter
}

func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = defaultPageSize
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// symbolParam reads the {symbol} path segment. Dashes stand in for dots so
// that share classes like BRK.B stay URL-friendly.
func symbolParam(r *http.Request) string {
	return strings.ReplaceAll(chi.URLParam(r, "symbol"), "-", ".")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
