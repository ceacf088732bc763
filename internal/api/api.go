// Package api implements the HTTP read surface over the durable
// stores: plain JSON GETs, no mutation, everything mounted under the
// configured BASE_PATH.
//
// Report rendering endpoints (CSV/PDF/analysis) are stubbed with 501
// rather than built.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"microstructmon/internal/config"
	"microstructmon/internal/model"
	"microstructmon/internal/store"
)

// Server wires the read API's http.Handler against a Store and Config.
type Server struct {
	store *store.Store
	cfg   config.Config
}

// New builds the API server. Call Router to obtain the mountable handler.
func New(st *store.Store, cfg config.Config) *Server {
	return &Server{store: st, cfg: cfg}
}

// Router returns a standalone mux.Router with every route registered
// under cfg.BasePath. Used
// directly by tests; cmd/monitor instead calls RegisterRoutes against a
// subrouter it shares with the websocket endpoint.
func (s *Server) Router() *mux.Router {
	root := mux.NewRouter()
	s.RegisterRoutes(root.PathPrefix(s.cfg.BasePath).Subrouter())
	return root
}

// RegisterRoutes adds every read-API route to r, which the caller has
// already scoped under BASE_PATH.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/trades", s.handleTrades).Methods(http.MethodGet)
	r.HandleFunc("/api/liquidations", s.handleLiquidations).Methods(http.MethodGet)
	r.HandleFunc("/api/oi-funding", s.handleOiFunding).Methods(http.MethodGet)
	r.HandleFunc("/api/outliers", s.handleOutliers).Methods(http.MethodGet)
	r.HandleFunc("/api/outliers/spans", s.handleOutlierSpans).Methods(http.MethodGet)

	// Report rendering: read-only consumers of the stores, left
	// unbuilt.
	for _, p := range []string{
		"/api/outliers/report", "/api/outliers/report.csv", "/api/outliers/report.pdf",
		"/api/outliers/report/busiest", "/api/analysis/report/pdf", "/api/analysis/report/compare/pdf",
	} {
		r.HandleFunc(p, notImplemented).Methods(http.MethodGet)
	}
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "report rendering is not implemented by this build", http.StatusNotImplemented)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"symbols":           s.cfg.Symbols,
		"depth":             s.cfg.Depth,
		"baseMmNotional":    s.cfg.BaseMMNotional,
		"largeMoveNotional": s.cfg.LargeMoveNotional,
		"sizeBins":          s.cfg.SizeBins,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"liveMonitoring": s.cfg.LiveMonitoring})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"))
	symbol := model.Symbol(q.Get("symbol"))
	writeJSON(w, s.store.Metrics.GetHistory(limit, symbol))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"))
	symbol, market, exchange := parseFilters(q)
	writeJSON(w, s.store.Trades.GetHistory(limit, symbol, market, exchange))
}

func (s *Server) handleLiquidations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"))
	symbol, market, exchange := parseFilters(q)
	writeJSON(w, s.store.Liquidations.GetHistory(limit, symbol, market, exchange))
}

func (s *Server) handleOiFunding(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"))
	symbol := model.Symbol(q.Get("symbol"))
	exchange := model.Venue(q.Get("exchange"))
	writeJSON(w, s.store.OiFunding.GetHistory(limit, symbol, exchange))
}

func (s *Server) handleOutliers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"))
	symbol, market, exchange := parseFilters(q)
	writeJSON(w, s.store.Outliers.GetHistory(limit, symbol, market, exchange))
}

func (s *Server) handleOutlierSpans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"))
	symbol, market, exchange := parseFilters(q)
	writeJSON(w, s.store.Spans.GetHistory(limit, symbol, market, exchange))
}

func parseFilters(q map[string][]string) (model.Symbol, model.Market, model.Venue) {
	get := func(key string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return model.Symbol(get("symbol")), model.Market(get("market")), model.Venue(get("exchange"))
}

// parseLimit defaults to 0 (unlimited, per cache.tail's contract) when
// absent or invalid.
func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
