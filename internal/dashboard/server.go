// Package dashboard exposes the HTTP control surface: a small JSON API plus a
// websocket stream of live bot status.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shankartiwary/Momentum-trading-bot/internal/bot"
	"github.com/shankartiwary/Momentum-trading-bot/internal/broker"
	"github.com/shankartiwary/Momentum-trading-bot/internal/ledger"
)

// FundsSource reports broker margin; nil when running without a live session.
type FundsSource interface {
	GetFunds(ctx context.Context) (broker.Funds, error)
}

// Server serves the JSON API and the websocket status stream.
type Server struct {
	runner *bot.Runner
	funds  FundsSource
	log    zerolog.Logger
	addr   string
	up     websocket.Upgrader
}

// NewServer wires the runner (status and orders) and an optional funds source.
func NewServer(runner *bot.Runner, funds FundsSource, log zerolog.Logger, addr string) *Server {
	return &Server{
		runner: runner,
		funds:  funds,
		log:    log,
		addr:   addr,
		up:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Handler builds the route table; split out so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/funds", s.handleFunds)
	mux.HandleFunc("/ws", s.handleWS)
	return corsMiddleware(mux)
}

// Start blocks serving until the listener fails.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.addr).Msg("dashboard up")
	return http.ListenAndServe(s.addr, s.Handler())
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	orders := s.runner.Orders()
	if orders == nil {
		orders = []ledger.Order{}
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleFunds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.funds == nil {
		http.Error(w, "funds unavailable in this mode", http.StatusServiceUnavailable)
		return
	}
	funds, err := s.funds.GetFunds(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("funds fetch failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, funds)
}

// handleWS streams status snapshots: the current one immediately, then every
// broadcast until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.runner.Subscribe(8)
	defer s.runner.Unsubscribe(sub)

	if err := conn.WriteJSON(s.runner.Status()); err != nil {
		return
	}
	for st := range sub.C() {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(st); err != nil {
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}
