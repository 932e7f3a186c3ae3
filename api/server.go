package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
	"github.com/radiopad/radiopad/transport/websocket"
)

var errMissingPlayer = errors.New("player id required: use /{player} or the " + protocol.HeaderPlayerID + " header")

// Options configures the switchboard HTTP surface.
type Options struct {
	// Partitioned keys connections by player id instead of sharing the
	// default partition.
	Partitioned bool
	Log         *zap.Logger
}

// Server represents the switchboard HTTP server
type Server struct {
	hub         *websocket.Hub
	router      *mux.Router
	partitioned bool
	log         *zap.Logger
}

// NewServer creates a new switchboard server around a running hub
func NewServer(hub *websocket.Hub, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		hub:         hub,
		router:      mux.NewRouter(),
		partitioned: opts.Partitioned,
		log:         log,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/partitions", s.handleListPartitions).Methods("GET")
	api.HandleFunc("/partitions/{player}", s.handleGetPartition).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/{player}", s.handleWebSocket)
	s.router.HandleFunc("/", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK\n")
}

func (s *Server) handleListPartitions(w http.ResponseWriter, r *http.Request) {
	parts, err := s.hub.Partitions(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(parts),
		"partitioned": s.partitioned,
		"partitions":  parts,
	})
}

func (s *Server) handleGetPartition(w http.ResponseWriter, r *http.Request) {
	player := mux.Vars(r)["player"]

	st, ok, err := s.hub.Status(r.Context(), player)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no connections for player "+player)
		return
	}

	respondJSON(w, http.StatusOK, st)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, err := s.identity(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.hub.ServeWS(w, r, id)
}

// identity derives the partition and role of a connection from its
// handshake.
func (s *Server) identity(r *http.Request) (websocket.Identity, error) {
	ua := r.UserAgent()
	id := websocket.Identity{
		Partition:     websocket.DefaultPartition,
		Authoritative: protocol.IsAuthoritative(ua),
		StationsURL:   r.Header.Get(protocol.HeaderStationsURL),
		UserAgent:     ua,
	}
	if !s.partitioned {
		return id, nil
	}

	key := strings.TrimSpace(mux.Vars(r)["player"])
	if key == "" {
		key = strings.TrimSpace(r.Header.Get(protocol.HeaderPlayerID))
	}
	if key == "" {
		return id, errMissingPlayer
	}
	id.Partition = key
	return id, nil
}
