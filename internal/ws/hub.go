package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"acquire/internal/game"
	"acquire/internal/lobby"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Namespace separates the three realtime surfaces.
type Namespace string

const (
	NamespaceLobby Namespace = "lobby"
	NamespaceGame  Namespace = "game"
	NamespaceVoice Namespace = "voice"
)

// Hub owns every socket across the three namespaces, the room membership
// tables, and the voice relay. It implements lobby.Notifier so the
// manager can fan out engine mutations without knowing about sockets.
type Hub struct {
	log          *slog.Logger
	allowOrigins map[string]bool

	mu      sync.Mutex
	clients map[Namespace]map[*Client]struct{}
	rooms   map[Namespace]map[string]map[*Client]struct{}

	// Voice relay tables: room -> sockets, socketID -> client.
	voiceRooms map[string]map[string]*Client
	voiceByID  map[string]*Client
}

func NewHub(logger *slog.Logger, allowOrigins []string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	allow := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		if o != "" {
			allow[o] = true
		}
	}
	h := &Hub{
		log:          logger,
		allowOrigins: allow,
		clients:      make(map[Namespace]map[*Client]struct{}),
		rooms:        make(map[Namespace]map[string]map[*Client]struct{}),
		voiceRooms:   make(map[string]map[string]*Client),
		voiceByID:    make(map[string]*Client),
	}
	for _, ns := range []Namespace{NamespaceLobby, NamespaceGame, NamespaceVoice} {
		h.clients[ns] = make(map[*Client]struct{})
		h.rooms[ns] = make(map[string]map[*Client]struct{})
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.allowOrigins) == 0 {
		return true
	}
	return h.allowOrigins[r.Header.Get("Origin")]
}

// Handler upgrades connections for one namespace. A missing username in
// the handshake is fatal and rejected before the upgrade.
func (h *Hub) Handler(ns Namespace) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			http.Error(w, "username is required", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &Client{
			hub:      h,
			ns:       ns,
			socketID: uuid.NewString(),
			username: username,
			lobbyID:  r.URL.Query().Get("lobbyId"),
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
		}
		h.mu.Lock()
		h.clients[ns][c] = struct{}{}
		if ns == NamespaceVoice {
			h.voiceByID[c.socketID] = c
		}
		h.mu.Unlock()
		h.log.Debug("socket connected", "namespace", ns, "socket_id", c.socketID, "username", username)

		go c.writePump()
		go c.readPump()
	}
}

func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	delete(h.clients[c.ns], c)
	var peers []*Client
	if c.ns == NamespaceVoice {
		peers = h.leaveVoiceLocked(c)
		delete(h.voiceByID, c.socketID)
	} else {
		h.leaveRoomLocked(c)
	}
	h.mu.Unlock()
	c.closeSend()

	notifyUserLeft(peers, c)
	h.log.Debug("socket disconnected", "namespace", c.ns, "socket_id", c.socketID)
}

// dispatch routes one inbound event. Unknown events are answered with a
// validation error on the offending socket only.
func (h *Hub) dispatch(c *Client, ev Event) {
	switch c.ns {
	case NamespaceLobby:
		switch ev.Event {
		case "joinLobby":
			h.joinRoom(c, roomFromPayload(ev.Data))
		case "leaveLobby":
			h.leaveRoom(c)
		default:
			c.sendError("validation", "unknown event")
		}
	case NamespaceGame:
		switch ev.Event {
		case "joinGame":
			h.joinRoom(c, roomFromPayload(ev.Data))
		case "leaveGame":
			h.leaveRoom(c)
		default:
			c.sendError("validation", "unknown event")
		}
	case NamespaceVoice:
		h.dispatchVoice(c, ev)
	}
}

func roomFromPayload(data json.RawMessage) string {
	var in struct {
		LobbyID string `json:"lobbyId"`
		RoomID  string `json:"roomId"`
	}
	_ = json.Unmarshal(data, &in)
	if in.LobbyID != "" {
		return in.LobbyID
	}
	return in.RoomID
}

func (h *Hub) joinRoom(c *Client, room string) {
	if room == "" {
		c.sendError("validation", "lobbyId is required")
		return
	}
	h.mu.Lock()
	h.leaveRoomLocked(c)
	if h.rooms[c.ns][room] == nil {
		h.rooms[c.ns][room] = make(map[*Client]struct{})
	}
	h.rooms[c.ns][room][c] = struct{}{}
	c.room = room
	h.mu.Unlock()
}

func (h *Hub) leaveRoom(c *Client) {
	h.mu.Lock()
	h.leaveRoomLocked(c)
	h.mu.Unlock()
}

func (h *Hub) leaveRoomLocked(c *Client) {
	if c.room == "" {
		return
	}
	if members, ok := h.rooms[c.ns][c.room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms[c.ns], c.room)
		}
	}
	c.room = ""
}

// broadcastRoom sends one event to every socket of ns in room. The
// membership snapshot is taken under the hub lock; enqueue order within a
// single broadcast is stable across members.
func (h *Hub) broadcastRoom(ns Namespace, room, event string, payload any) {
	raw, err := newEvent(event, payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	members := make([]*Client, 0, len(h.rooms[ns][room]))
	for c := range h.rooms[ns][room] {
		members = append(members, c)
	}
	h.mu.Unlock()
	for _, c := range members {
		c.enqueue(raw)
	}
}

func (h *Hub) broadcastNamespace(ns Namespace, event string, payload any) {
	raw, err := newEvent(event, payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	all := make([]*Client, 0, len(h.clients[ns]))
	for c := range h.clients[ns] {
		all = append(all, c)
	}
	h.mu.Unlock()
	for _, c := range all {
		c.enqueue(raw)
	}
}

// lobby.Notifier implementation

func (h *Hub) LobbyListChanged(lobbies []lobby.Summary) {
	h.broadcastNamespace(NamespaceLobby, "lobbyListUpdate", map[string]any{"lobbies": lobbies})
}

func (h *Hub) LobbyChanged(id string) {
	h.broadcastRoom(NamespaceLobby, id, "lobbyUpdate", nil)
}

func (h *Hub) GameChanged(id string) {
	h.broadcastRoom(NamespaceGame, id, "gameUpdate", nil)
}

func (h *Hub) GameEnded(id string, result game.Result) {
	h.broadcastRoom(NamespaceGame, id, "gameEnd", map[string]any{"result": result})
}
