package ws

import (
	"encoding/json"
	"testing"

	"acquire/internal/game"
	"acquire/internal/lobby"
)

func testClient(h *Hub, ns Namespace, socketID, username string) *Client {
	c := &Client{
		hub:      h,
		ns:       ns,
		socketID: socketID,
		username: username,
		send:     make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[ns][c] = struct{}{}
	if ns == NamespaceVoice {
		h.voiceByID[socketID] = c
	}
	h.mu.Unlock()
	return c
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("bad frame %s: %v", raw, err)
		}
		return ev
	default:
		t.Fatalf("expected a pending event for %s", c.socketID)
		return Event{}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func noEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected event for %s: %s", c.socketID, raw)
	default:
	}
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestRoomScopedBroadcast(t *testing.T) {
	h := NewHub(nil, nil)
	inRoom := testClient(h, NamespaceGame, "s1", "alice")
	alsoIn := testClient(h, NamespaceGame, "s2", "bob")
	outside := testClient(h, NamespaceGame, "s3", "carol")

	h.dispatch(inRoom, Event{Event: "joinGame", Data: rawPayload(t, map[string]string{"lobbyId": "l1"})})
	h.dispatch(alsoIn, Event{Event: "joinGame", Data: rawPayload(t, map[string]string{"lobbyId": "l1"})})
	h.dispatch(outside, Event{Event: "joinGame", Data: rawPayload(t, map[string]string{"lobbyId": "l2"})})

	h.GameChanged("l1")
	if ev := nextEvent(t, inRoom); ev.Event != "gameUpdate" || len(ev.Data) != 0 {
		t.Fatalf("expected empty gameUpdate, got %+v", ev)
	}
	nextEvent(t, alsoIn)
	noEvent(t, outside)

	h.GameEnded("l1", game.Result{})
	if ev := nextEvent(t, inRoom); ev.Event != "gameEnd" {
		t.Fatalf("expected gameEnd, got %s", ev.Event)
	}

	h.dispatch(alsoIn, Event{Event: "leaveGame"})
	drain(alsoIn)
	h.GameChanged("l1")
	nextEvent(t, inRoom)
	noEvent(t, alsoIn)
}

func TestLobbyListBroadcastReachesNamespace(t *testing.T) {
	h := NewHub(nil, nil)
	a := testClient(h, NamespaceLobby, "s1", "alice")
	b := testClient(h, NamespaceLobby, "s2", "bob")
	other := testClient(h, NamespaceGame, "s3", "carol")

	h.LobbyListChanged([]lobby.Summary{{ID: "l1", Host: "alice"}})
	for _, c := range []*Client{a, b} {
		ev := nextEvent(t, c)
		if ev.Event != "lobbyListUpdate" {
			t.Fatalf("expected lobbyListUpdate, got %s", ev.Event)
		}
		var payload struct {
			Lobbies []lobby.Summary `json:"lobbies"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil || len(payload.Lobbies) != 1 {
			t.Fatalf("bad list payload: %s", ev.Data)
		}
	}
	noEvent(t, other)
}

func TestUnknownEventAnswersErrorOnly(t *testing.T) {
	h := NewHub(nil, nil)
	a := testClient(h, NamespaceLobby, "s1", "alice")
	b := testClient(h, NamespaceLobby, "s2", "bob")

	h.dispatch(a, Event{Event: "nonsense"})
	ev := nextEvent(t, a)
	if ev.Event != "error" {
		t.Fatalf("expected error event, got %s", ev.Event)
	}
	noEvent(t, b)
}

func TestVoiceJoinRosterAndNotifications(t *testing.T) {
	h := NewHub(nil, nil)
	a := testClient(h, NamespaceVoice, "sa", "alice")
	b := testClient(h, NamespaceVoice, "sb", "bob")

	h.dispatchVoice(a, Event{Event: "voice:join", Data: rawPayload(t, map[string]string{"roomId": "room1"})})
	if ev := nextEvent(t, a); ev.Event != "voice:joined" {
		t.Fatalf("expected voice:joined ack, got %s", ev.Event)
	}
	if ev := nextEvent(t, a); ev.Event != "voice:room-users" {
		t.Fatalf("expected roster, got %s", ev.Event)
	}

	h.dispatchVoice(b, Event{Event: "voice:join", Data: rawPayload(t, map[string]string{"roomId": "room1"})})
	if ev := nextEvent(t, a); ev.Event != "voice:user-joined" {
		t.Fatalf("existing members should learn about joiners, got %s", ev.Event)
	}
	nextEvent(t, b) // ack
	ev := nextEvent(t, b)
	var roster struct {
		Users []voiceUser `json:"users"`
	}
	if err := json.Unmarshal(ev.Data, &roster); err != nil || len(roster.Users) != 2 {
		t.Fatalf("joiner should see the full roster: %s", ev.Data)
	}

	h.dispatchVoice(b, Event{Event: "voice:leave"})
	if ev := nextEvent(t, a); ev.Event != "voice:user-left" {
		t.Fatalf("peers should learn about leavers, got %s", ev.Event)
	}
}

func TestVoiceRelayRequiresSharedRoom(t *testing.T) {
	h := NewHub(nil, nil)
	a := testClient(h, NamespaceVoice, "sa", "alice")
	b := testClient(h, NamespaceVoice, "sb", "bob")
	c := testClient(h, NamespaceVoice, "sc", "carol")

	h.dispatchVoice(a, Event{Event: "voice:join", Data: rawPayload(t, map[string]string{"roomId": "room1"})})
	h.dispatchVoice(b, Event{Event: "voice:join", Data: rawPayload(t, map[string]string{"roomId": "room1"})})
	h.dispatchVoice(c, Event{Event: "voice:join", Data: rawPayload(t, map[string]string{"roomId": "room2"})})
	drain(a)
	drain(b)
	drain(c)

	offer := rawPayload(t, map[string]any{"targetId": "sb", "payload": map[string]string{"sdp": "x"}})
	h.dispatchVoice(a, Event{Event: "voice:offer", Data: offer})
	ev := nextEvent(t, b)
	if ev.Event != "voice:offer" {
		t.Fatalf("expected relayed offer, got %s", ev.Event)
	}
	var relayed struct {
		FromID  string          `json:"fromId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(ev.Data, &relayed); err != nil || relayed.FromID != "sa" {
		t.Fatalf("relay should carry the sender id: %s", ev.Data)
	}
	if string(relayed.Payload) != `{"sdp":"x"}` {
		t.Fatalf("payload must pass through untouched: %s", relayed.Payload)
	}
	noEvent(t, c)

	// Cross-room relays bounce with an error to the sender only.
	cross := rawPayload(t, map[string]any{"targetId": "sc", "payload": map[string]string{}})
	h.dispatchVoice(a, Event{Event: "voice:ice", Data: cross})
	if ev := nextEvent(t, a); ev.Event != "error" {
		t.Fatalf("expected error for cross-room relay, got %s", ev.Event)
	}
	noEvent(t, c)

	// Unknown targets bounce the same way.
	unknown := rawPayload(t, map[string]any{"targetId": "nope"})
	h.dispatchVoice(b, Event{Event: "voice:answer", Data: unknown})
	if ev := nextEvent(t, b); ev.Event != "error" {
		t.Fatalf("expected error for unknown target, got %s", ev.Event)
	}
}

func TestVoiceRoomCleanup(t *testing.T) {
	h := NewHub(nil, nil)
	a := testClient(h, NamespaceVoice, "sa", "alice")
	h.dispatchVoice(a, Event{Event: "voice:join", Data: rawPayload(t, map[string]string{"roomId": "room1"})})
	h.dispatchVoice(a, Event{Event: "voice:leave"})

	h.mu.Lock()
	_, exists := h.voiceRooms["room1"]
	h.mu.Unlock()
	if exists {
		t.Fatalf("empty voice rooms should be dropped")
	}
}
