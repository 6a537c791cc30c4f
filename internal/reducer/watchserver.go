package reducer

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"sentra/internal/typed"
)

// TraceServer serves the PushCallLog/PopCallLog bracket of a running
// reduction over a websocket, so a browser-based trace viewer can tail it
// live: one Upgrader, one client set guarded by a mutex, JSON frames out.
type TraceServer struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewTraceServer returns a server with no clients yet connected.
func NewTraceServer() *TraceServer {
	return &TraceServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// traceEvent is one bracket marker, JSON-encoded to every connected client.
type traceEvent struct {
	Kind string `json:"kind"` // "push" or "pop"
	Key  string `json:"key,omitempty"`
}

// Handler upgrades an HTTP request to a websocket connection and registers
// it as a trace listener. Mount at the CLI's -watch address.
func (t *TraceServer) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	t.mu.Lock()
	t.clients[conn] = true
	t.mu.Unlock()
}

// Broadcast scans stmts for PushCallLog/PopCallLog markers and forwards
// each to every connected client. The driver passes the whole body as it
// stands after each pass, so markers from earlier passes are sent again.
func (t *TraceServer) Broadcast(stmts []typed.Statement) {
	for _, s := range stmts {
		var ev traceEvent
		switch n := s.(type) {
		case typed.PushCallLog:
			ev = traceEvent{Kind: "push", Key: n.Key.String()}
		case typed.PopCallLog:
			ev = traceEvent{Kind: "pop"}
		default:
			continue
		}
		t.send(ev)
	}
}

func (t *TraceServer) send(ev traceEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for conn := range t.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(t.clients, conn)
		}
	}
}
