// Package hubsim is a local stand-in for the Hub control-plane and tunnel
// server, used by pkg/node's integration tests and by cmd/hubsim. It
// implements just enough of spec §6.1/§6.2 to drive a real node through
// the full state machine without a network dependency on a real Hub.
package hubsim

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SlotPolicy controls how a given slot behaves across the exchanges a
// test wants to exercise: immediate grant, a pairing-code round trip,
// or an outright denial.
type SlotPolicy struct {
	Mode           string // "grant", "pair", "deny"
	PairingCode    string
	RequireApprove bool
}

// Server is an in-process Hub double. Its zero value is not usable; use New.
type Server struct {
	mu        sync.Mutex
	policies  map[string]SlotPolicy
	sessions  map[string]string // slot_id -> session_token
	nodes     map[string]string // slot_id -> node_id
	commands  map[string][]Command
	upgrader  websocket.Upgrader
	router    chi.Router
}

// Command is a pending command a test enqueues for a registered node to
// pull via /api/device/commands/pull.
type Command struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

func New() *Server {
	s := &Server{
		policies: map[string]SlotPolicy{},
		sessions: map[string]string{},
		nodes:    map[string]string{},
		commands: map[string][]Command{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"POST", "GET"}}))

	r.Post("/api/device/hello", s.handleHello)
	r.Post("/api/device/pair", s.handlePair)
	r.Post("/api/device/session", s.handleSession)
	r.Post("/api/device/approve", s.handleApprove)
	r.Post("/api/device/heartbeat", s.handleHeartbeat)
	r.Post("/api/device/commands/pull", s.handleCommandsPull)
	r.Post("/api/device/commands/ack", s.handleCommandsAck)
	r.Post("/api/nodes/register_by_slot", s.handleRegisterBySlot)
	r.Get("/ws/tunnel", s.handleTunnel)
	return r
}

// ServeHTTP makes Server an http.Handler directly usable by httptest.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// SetPolicy configures how a slot responds to hello and session polls.
// Pair and approve grant regardless of the slot's policy.
func (s *Server) SetPolicy(slotID string, p SlotPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[slotID] = p
}

// EnqueueCommand makes a command available to a registered slot's next
// commands/pull call.
func (s *Server) EnqueueCommand(slotID string, cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[slotID] = append(s.commands[slotID], cmd)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotID string `json:"slot_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad_request"})
		return
	}
	s.mu.Lock()
	policy := s.policies[req.SlotID]
	s.mu.Unlock()

	switch policy.Mode {
	case "deny":
		writeJSON(w, 200, map[string]interface{}{"status": "DENIED"})
	case "pair":
		writeJSON(w, 200, map[string]interface{}{
			"status":             "PENDING",
			"retry_after_ms":     500,
			"pairing_code":       policy.PairingCode,
			"pairing_expires_at": time.Now().Add(time.Minute).Format(time.RFC3339),
		})
	default:
		writeJSON(w, 200, map[string]interface{}{"status": "APPROVED", "retry_after_ms": 500})
	}
}

func (s *Server) grant(w http.ResponseWriter, slotID string) {
	nodeID := "n-" + uuid.NewString()[:8]
	sessionToken := "sess-" + uuid.NewString()
	s.mu.Lock()
	s.nodes[slotID] = nodeID
	s.sessions[slotID] = sessionToken
	s.mu.Unlock()
	writeJSON(w, 200, map[string]interface{}{
		"ok":            true,
		"status":        "granted",
		"node_id":       nodeID,
		"session_token": sessionToken,
		"ttl_seconds":   3600,
	})
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotID      string `json:"slot_id"`
		PairingCode string `json:"pairing_code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad_request"})
		return
	}
	s.grant(w, req.SlotID)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotID string `json:"slot_id"`
		MAC    string `json:"mac"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad_request"})
		return
	}
	if req.MAC == "" {
		writeJSON(w, 400, map[string]string{"error": "missing_mac"})
		return
	}
	s.grant(w, req.SlotID)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotID string `json:"slot_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad_request"})
		return
	}
	s.mu.Lock()
	token, ok := s.sessions[req.SlotID]
	if !ok && s.policies[req.SlotID].Mode != "pair" {
		// No pairing code was ever issued for this slot, so there is no
		// separate approval step to wait on: the first poll stands in for
		// an admin having already approved the slot out of band.
		token = "sess-" + uuid.NewString()
		s.nodes[req.SlotID] = "n-" + uuid.NewString()[:8]
		s.sessions[req.SlotID] = token
		ok = true
	}
	nodeID := s.nodes[req.SlotID]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, 200, map[string]interface{}{"status": "PENDING", "retry_after_ms": 500})
		return
	}
	writeJSON(w, 200, map[string]interface{}{
		"status":        "GRANTED",
		"session_token": token,
		"node_id":       nodeID,
		"ttl_seconds":   3600,
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		writeJSON(w, 401, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, 200, map[string]interface{}{"ttl_seconds": 3600})
}

func (s *Server) handleCommandsPull(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotID string `json:"slot_id"`
	}
	_ = decodeBody(r, &req)
	s.mu.Lock()
	cmds := s.commands[req.SlotID]
	s.commands[req.SlotID] = nil
	s.mu.Unlock()
	writeJSON(w, 200, map[string]interface{}{"commands": cmds})
}

func (s *Server) handleCommandsAck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]interface{}{"ok": true})
}

func (s *Server) handleRegisterBySlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotID string `json:"slot_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad_request"})
		return
	}
	nodeID := "n-" + uuid.NewString()[:8]
	writeJSON(w, 200, map[string]interface{}{
		"node_id":         nodeID,
		"node_auth_token": "tok-" + uuid.NewString(),
	})
}

func (s *Server) handleTunnel(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg["type"] {
		case "register":
			_ = conn.WriteJSON(map[string]interface{}{
				"type":       "register_ack",
				"status":     "ok",
				"node_id":    msg["node_id"],
				"tunnel_id":  "t-" + uuid.NewString()[:8],
				"tunnel_url": "",
			})
		case "ping":
			// no-op: a real Hub need not reply to keepalive pings.
		}
	}
}
