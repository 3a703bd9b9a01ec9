package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"acquire/internal/config"
	"acquire/internal/game"
	"acquire/internal/lobby"
)

func testServer(t *testing.T) (*Server, *lobby.Manager) {
	t.Helper()
	cfg := config.ServerConfig{GameRateLimitRPS: 1000}
	manager := lobby.NewManager(lobby.Caps{
		MaxLobbies:            10,
		MaxActiveGames:        10,
		LobbyIdleTimeout:      30 * time.Minute,
		GameIdleTimeout:       2 * time.Hour,
		FinishedGameRetention: 5 * time.Minute,
		CleanupInterval:       time.Minute,
	}, time.Now, nil, nil)
	return New(cfg, nil, manager), manager
}

func doJSON(t *testing.T, s *Server, method, path string, body any, cookies map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error errorBody `json:"error"`
	}
	decodeBody(t, rec, &envelope)
	return envelope.Error.Code
}

func hostLobby(t *testing.T, s *Server, user string) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/host", map[string]any{"username": user}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("host: status %d body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		LobbyID string `json:"lobbyId"`
	}
	decodeBody(t, rec, &out)
	if out.LobbyID == "" {
		t.Fatalf("host response missing lobbyId")
	}
	return out.LobbyID
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
}

func TestHostValidation(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/host", map[string]any{"username": "  "}, nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != CodeValidation {
		t.Fatalf("empty username: status %d code %s", rec.Code, errorCode(t, rec))
	}
}

func TestHostSetsCookies(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/host", map[string]any{"username": "alice"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("host status %d", rec.Code)
	}
	var sawUser, sawLobby bool
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case "username":
			sawUser = c.Value == "alice"
		case "lobbyId":
			sawLobby = c.Value != ""
		}
	}
	if !sawUser || !sawLobby {
		t.Fatalf("identity cookies missing")
	}
}

func TestJoinRedirectsAndErrors(t *testing.T) {
	s, _ := testServer(t)
	id := hostLobby(t, s, "alice")

	rec := doJSON(t, s, http.MethodPost, "/lobby/"+id+"/players", map[string]any{"username": "bob"}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("join should redirect, status %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/lobby/"+id {
		t.Fatalf("redirect location %q", loc)
	}

	rec = doJSON(t, s, http.MethodPost, "/lobby/"+id+"/players", map[string]any{"username": "bob"}, nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != CodeConflict {
		t.Fatalf("duplicate join: status %d code %s", rec.Code, errorCode(t, rec))
	}

	rec = doJSON(t, s, http.MethodPost, "/lobby/ffffffffffffffff/players", map[string]any{"username": "zed"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown lobby: status %d", rec.Code)
	}
}

func TestJoinFullLobby(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/host", map[string]any{"username": "alice", "maxPlayers": 2}, nil)
	var out struct {
		LobbyID string `json:"lobbyId"`
	}
	decodeBody(t, rec, &out)
	if rec := doJSON(t, s, http.MethodPost, "/lobby/"+out.LobbyID+"/players", map[string]any{"username": "bob"}, nil); rec.Code != http.StatusFound {
		t.Fatalf("second join: status %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodPost, "/lobby/"+out.LobbyID+"/players", map[string]any{"username": "carol"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("full lobby join: status %d", rec.Code)
	}
}

func TestLobbyStatusAuthorization(t *testing.T) {
	s, _ := testServer(t)
	id := hostLobby(t, s, "alice")

	rec := doJSON(t, s, http.MethodGet, "/lobby/"+id+"/status", nil, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("anonymous status should redirect home, status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/lobby/"+id+"/status", nil, map[string]string{"username": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("member status: %d", rec.Code)
	}
	var st lobby.LobbyStatus
	decodeBody(t, rec, &st)
	if st.Host != "alice" || st.Self != "alice" || st.PossibleToStart {
		t.Fatalf("status payload wrong: %+v", st)
	}
}

func TestCapacityError(t *testing.T) {
	cfg := config.ServerConfig{GameRateLimitRPS: 1000}
	manager := lobby.NewManager(lobby.Caps{MaxLobbies: 1, MaxActiveGames: 1, CleanupInterval: time.Minute}, time.Now, nil, nil)
	s := New(cfg, nil, manager)

	hostLobby(t, s, "alice")
	rec := doJSON(t, s, http.MethodPost, "/host", map[string]any{"username": "bob"}, nil)
	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != CodeCapacity {
		t.Fatalf("capacity: status %d code %s", rec.Code, errorCode(t, rec))
	}
}

func TestGameRoutesRequireUsername(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/game/deadbeefdeadbeef/start", nil, nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != CodeUnauthorized {
		t.Fatalf("missing cookie: status %d code %s", rec.Code, errorCode(t, rec))
	}
}

// startedGame drives host+join over HTTP and attaches a deterministic
// game directly through the manager.
func startedGame(t *testing.T, s *Server, m *lobby.Manager) (id string, first, second string) {
	t.Helper()
	id = hostLobby(t, s, "alice")
	if rec := doJSON(t, s, http.MethodPost, "/lobby/"+id+"/players", map[string]any{"username": "bob"}, nil); rec.Code != http.StatusFound {
		t.Fatalf("join: status %d", rec.Code)
	}
	if err := m.StartGame(id, "alice", func(players []string) (*game.Game, error) {
		return game.New(players, game.IdentityShuffle)
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Identity order deals alice (0,0)..(0,5) with order tile (0,6) and
	// bob (0,7)..(1,0) with order tile (1,1), so alice stays first.
	return id, "alice", "bob"
}

func TestGameFlowOverHTTP(t *testing.T) {
	s, m := testServer(t)
	id, first, second := startedGame(t, s, m)

	rec := doJSON(t, s, http.MethodGet, "/game/"+id+"/status", nil, map[string]string{"username": first})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var st game.Status
	decodeBody(t, rec, &st)
	if st.State != game.StatePlaceTile || st.Self == nil || len(st.Self.Hand) != 6 {
		t.Fatalf("unexpected status %+v", st)
	}

	// Out-of-turn placement is a state error.
	rec = doJSON(t, s, http.MethodPost, "/game/"+id+"/tile", map[string]any{"x": 0, "y": 7}, map[string]string{"username": second})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != CodeState {
		t.Fatalf("out of turn: status %d code %s", rec.Code, errorCode(t, rec))
	}

	// Malformed positions fail validation before the engine runs.
	rec = doJSON(t, s, http.MethodPost, "/game/"+id+"/tile", map[string]any{"x": 42, "y": 0}, map[string]string{"username": first})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != CodeValidation {
		t.Fatalf("bad position: status %d code %s", rec.Code, errorCode(t, rec))
	}

	rec = doJSON(t, s, http.MethodPost, "/game/"+id+"/tile", map[string]any{"x": 0, "y": 0}, map[string]string{"username": first})
	if rec.Code != http.StatusOK {
		t.Fatalf("place: status %d body %s", rec.Code, rec.Body.String())
	}

	// A four-entry batch truncates to three; inactive chains skip quietly.
	batch := []map[string]any{
		{"name": "phoenix", "price": 0},
		{"name": "quantum", "price": 0},
		{"name": "hydra", "price": 0},
		{"name": "zeta", "price": 0},
	}
	rec = doJSON(t, s, http.MethodPost, "/game/"+id+"/buy-stocks", batch, map[string]string{"username": first})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy-stocks: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/game/"+id+"/end-turn", nil, map[string]string{"username": first})
	if rec.Code != http.StatusOK {
		t.Fatalf("end-turn: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/game/"+id+"/status", nil, map[string]string{"username": second})
	decodeBody(t, rec, &st)
	if st.Self == nil || !st.Self.TakingTurn {
		t.Fatalf("turn should rotate to %s", second)
	}

	// Strangers are bounced off the game status page.
	rec = doJSON(t, s, http.MethodGet, "/game/"+id+"/status", nil, map[string]string{"username": "mallory"})
	if rec.Code != http.StatusFound {
		t.Fatalf("stranger status: %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/game/"+id+"/end-result", nil, map[string]string{"username": first})
	if rec.Code != http.StatusOK {
		t.Fatalf("end-result: %d", rec.Code)
	}
}

func TestLeaveClearsCookies(t *testing.T) {
	s, _ := testServer(t)
	id := hostLobby(t, s, "alice")
	if rec := doJSON(t, s, http.MethodPost, "/lobby/"+id+"/players", map[string]any{"username": "bob"}, nil); rec.Code != http.StatusFound {
		t.Fatalf("join failed")
	}

	rec := doJSON(t, s, http.MethodPost, "/lobby/"+id+"/leave", nil, map[string]string{"username": "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("leave: %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if (c.Name == "username" || c.Name == "lobbyId") && c.MaxAge != -1 {
			t.Fatalf("cookie %s should be cleared", c.Name)
		}
	}
}

func TestRateLimitEnvelope(t *testing.T) {
	cfg := config.ServerConfig{GameRateLimitRPS: 1}
	manager := lobby.NewManager(lobby.Caps{MaxLobbies: 5, MaxActiveGames: 5, CleanupInterval: time.Minute}, time.Now, nil, nil)
	s := New(cfg, nil, manager)

	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		last = doJSON(t, s, http.MethodGet, "/game/deadbeefdeadbeef/status", nil, map[string]string{"username": "alice"})
		if last.Code == http.StatusTooManyRequests {
			break
		}
	}
	if last.Code != http.StatusTooManyRequests || errorCode(t, last) != CodeRateLimited {
		t.Fatalf("expected a 429 with the shared envelope, got %d", last.Code)
	}
}
