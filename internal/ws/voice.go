package ws

import "encoding/json"

// Voice signaling: the server is a pure addressed forwarder. Payloads are
// never inspected; delivery requires sender and target to share a room.

type voiceUser struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

func (h *Hub) dispatchVoice(c *Client, ev Event) {
	switch ev.Event {
	case "voice:join":
		h.voiceJoin(c, ev.Data)
	case "voice:leave":
		h.voiceLeave(c)
	case "voice:offer", "voice:answer", "voice:ice":
		h.voiceRelay(c, ev)
	default:
		c.sendError("validation", "unknown event")
	}
}

func (h *Hub) voiceJoin(c *Client, data json.RawMessage) {
	var in struct {
		RoomID string `json:"roomId"`
	}
	_ = json.Unmarshal(data, &in)
	if in.RoomID == "" {
		c.sendError("validation", "roomId is required")
		return
	}

	h.mu.Lock()
	peers := h.leaveVoiceLocked(c)
	if h.voiceRooms[in.RoomID] == nil {
		h.voiceRooms[in.RoomID] = make(map[string]*Client)
	}
	h.voiceRooms[in.RoomID][c.socketID] = c
	c.room = in.RoomID

	roster := make([]voiceUser, 0, len(h.voiceRooms[in.RoomID]))
	var joined []*Client
	for _, member := range h.voiceRooms[in.RoomID] {
		roster = append(roster, voiceUser{SocketID: member.socketID, Username: member.username})
		if member != c {
			joined = append(joined, member)
		}
	}
	h.mu.Unlock()

	notifyUserLeft(peers, c)

	c.sendEvent("voice:joined", map[string]string{"socketId": c.socketID, "roomId": in.RoomID})
	c.sendEvent("voice:room-users", map[string]any{"users": roster})
	for _, member := range joined {
		member.sendEvent("voice:user-joined", voiceUser{SocketID: c.socketID, Username: c.username})
	}
}

func (h *Hub) voiceLeave(c *Client) {
	h.mu.Lock()
	peers := h.leaveVoiceLocked(c)
	h.mu.Unlock()
	notifyUserLeft(peers, c)
}

// leaveVoiceLocked removes c from its voice room and returns the peers to
// notify once the lock is released.
func (h *Hub) leaveVoiceLocked(c *Client) []*Client {
	if c.ns != NamespaceVoice || c.room == "" {
		return nil
	}
	room := h.voiceRooms[c.room]
	delete(room, c.socketID)
	if len(room) == 0 {
		delete(h.voiceRooms, c.room)
	}
	c.room = ""
	peers := make([]*Client, 0, len(room))
	for _, member := range room {
		peers = append(peers, member)
	}
	return peers
}

func notifyUserLeft(peers []*Client, c *Client) {
	for _, member := range peers {
		member.sendEvent("voice:user-left", voiceUser{SocketID: c.socketID, Username: c.username})
	}
}

// voiceRelay forwards offer/answer/ice to exactly the named target, and
// only when both endpoints sit in the same voice room.
func (h *Hub) voiceRelay(c *Client, ev Event) {
	var in struct {
		TargetID string          `json:"targetId"`
		Payload  json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(ev.Data, &in); err != nil || in.TargetID == "" {
		c.sendError("validation", "targetId is required")
		return
	}

	h.mu.Lock()
	target, ok := h.voiceByID[in.TargetID]
	sameRoom := ok && c.room != "" && target.room == c.room
	h.mu.Unlock()

	if !sameRoom {
		c.sendError("not-found", "target not in your voice room")
		return
	}
	target.sendEvent(ev.Event, map[string]any{
		"fromId":       c.socketID,
		"fromUsername": c.username,
		"payload":      in.Payload,
	})
}
