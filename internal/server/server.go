// Package server runs simulations for remote clients over websockets and
// serves the result archive as JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/clanksim/internal/config"
	"github.com/lawnchairsociety/clanksim/internal/database"
	"github.com/lawnchairsociety/clanksim/internal/logger"
	"github.com/lawnchairsociety/clanksim/internal/montecarlo"
	"github.com/lawnchairsociety/clanksim/internal/report"
	"github.com/lawnchairsociety/clanksim/internal/run"
)

// progressMessages is roughly how many progress messages a session receives.
const progressMessages = 100

// Server is the websocket simulation service.
type Server struct {
	cfg     *config.Config
	db      *database.Database // nil disables archiving and history
	limiter *SessionLimiter
	proxies []netip.Prefix
}

// New creates a server. db may be nil.
func New(cfg *config.Config, db *database.Database) *Server {
	proxies, err := cfg.Server.Connections.ProxyPrefixes()
	if err != nil {
		logger.Warning("Ignoring invalid trusted proxies", "error", err)
	}
	return &Server{
		cfg:     cfg,
		db:      db,
		limiter: NewSessionLimiter(cfg.Server.Connections),
		proxies: proxies,
	}
}

// Handler returns the HTTP routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /simulate", s.handleWebSocketUpgrade)
	if s.db != nil {
		mux.HandleFunc("GET /simulations", s.handleListSimulations)
		mux.HandleFunc("GET /simulations/{id}", s.handleGetSimulation)
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Simulation server listening", "address", s.cfg.Server.Listen)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocketUpgrade upgrades an HTTP connection to a simulation session.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, s.proxies)

	if !s.limiter.TryAcquire(ip) {
		logger.Warning("Simulation session rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", ip)
		http.Error(w, "Too many simulations running. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.Server.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		s.limiter.Release(ip)
		return
	}

	defer s.limiter.Release(ip)
	client := NewWebSocketClient(conn, s.cfg.Server.WebSocket.MaxMessageSize)
	s.handleSession(r.Context(), client, ip)
}

// handleSession reads one request, streams progress while the simulation
// runs and finishes with a result or an error message.
func (s *Server) handleSession(ctx context.Context, client *WebSocketClient, ip string) {
	req, err := client.ReadRequest()
	if err != nil {
		logger.Info("Invalid simulation request", "client_ip", ip, "error", err)
		client.Send(Message{Type: TypeError, Error: "invalid request: " + err.Error()})
		client.Finish("invalid request")
		return
	}

	sim, deck, err := req.resolve(s.cfg.Simulation, s.cfg.Server)
	if err != nil {
		logger.Info("Simulation request rejected", "client_ip", ip, "error", err)
		client.Send(Message{Type: TypeError, Error: err.Error()})
		client.Finish("rejected")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go client.WatchClose(cancel)

	opts := sim.Options()
	opts.ProgressEvery = max(sim.Trials/progressMessages, 1)
	opts.Progress = func(done int) {
		client.Send(Message{Type: TypeProgress, Done: done, Trials: sim.Trials})
	}

	logger.Info("Simulation session started",
		"client_ip", ip,
		"label", req.Label,
		"trials", sim.Trials,
		"deck_size", deck.Size())

	result, err := montecarlo.Simulate(ctx, sim.Params(), deck, opts)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("Simulation session abandoned", "client_ip", ip, "error", err)
			client.Finish("cancelled")
			return
		}
		logger.Error("Simulation failed", "client_ip", ip, "error", err)
		client.Send(Message{Type: TypeError, Error: err.Error()})
		client.Finish("failed")
		return
	}

	msg := Message{Type: TypeResult, Result: result}
	summary := report.SummarizeResult(result)
	msg.Summary = &summary

	if req.Save && s.db != nil {
		rec := database.NewSimulation(req.Label, deck.Counts(), sim.Params(), result)
		id, err := s.db.SaveSimulation(ctx, rec)
		if err != nil {
			logger.Error("Failed to archive simulation", "client_ip", ip, "error", err)
		} else {
			msg.ID = id
		}
	}

	if err := client.Send(msg); err != nil {
		logger.Info("Failed to send simulation result", "client_ip", ip, "error", err)
	}
	client.Finish("done")
}

// simulationView is the JSON form of an archived simulation.
type simulationView struct {
	ID        string                `json:"id"`
	CreatedAt time.Time             `json:"created_at"`
	Label     string                `json:"label"`
	Deck      map[string]int        `json:"deck"`
	Params    run.Params            `json:"params"`
	Trials    int                   `json:"trials"`
	Workers   int                   `json:"workers"`
	Seed      uint64                `json:"seed"`
	ElapsedMS int64                 `json:"elapsed_ms"`
	Summary   *report.Summary       `json:"summary,omitempty"`
	Histogram *montecarlo.Histogram `json:"histogram,omitempty"`
}

func newSimulationView(sim *database.Simulation, detail bool) simulationView {
	v := simulationView{
		ID:        sim.ID,
		CreatedAt: sim.CreatedAt,
		Label:     sim.Label,
		Deck:      sim.Deck,
		Params:    sim.Params,
		Trials:    sim.Trials,
		Workers:   sim.Workers,
		Seed:      sim.Seed,
		ElapsedMS: sim.Elapsed.Milliseconds(),
	}
	if detail {
		summary := report.Summarize(sim.Histogram)
		v.Summary = &summary
		v.Histogram = &sim.Histogram
	}
	return v
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	sims, err := s.db.ListSimulations(r.Context(), 50)
	if err != nil {
		logger.Error("Failed to list simulations", "error", err)
		http.Error(w, "failed to list simulations", http.StatusInternalServerError)
		return
	}

	views := make([]simulationView, 0, len(sims))
	for _, sim := range sims {
		views = append(views, newSimulationView(sim, false))
	}
	writeJSON(w, views)
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	sim, err := s.db.LoadSimulation(r.Context(), r.PathValue("id"))
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "simulation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to load simulation", "id", r.PathValue("id"), "error", err)
		http.Error(w, "failed to load simulation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, newSimulationView(sim, true))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}
