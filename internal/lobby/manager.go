package lobby

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"acquire/internal/game"
)

// Notifier receives fan-out hooks after registry or record mutations. The
// realtime hub implements it; tests plug in a recorder.
type Notifier interface {
	LobbyListChanged(lobbies []Summary)
	LobbyChanged(id string)
	GameChanged(id string)
	GameEnded(id string, result game.Result)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) LobbyListChanged([]Summary)    {}
func (NopNotifier) LobbyChanged(string)           {}
func (NopNotifier) GameChanged(string)            {}
func (NopNotifier) GameEnded(string, game.Result) {}

// Summary is the public lobby-list row.
type Summary struct {
	ID          string    `json:"id"`
	Host        string    `json:"host"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	IsFull      bool      `json:"isFull"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Record pairs a lobby with its optional game and is the unit of mutual
// exclusion: every lobby or game mutation serializes on Record.mu.
type Record struct {
	mu sync.Mutex

	Lobby *Lobby
	Game  *game.Game

	GameStartedAt      time.Time
	GameLastActivityAt time.Time
	Finished           bool
	FinishedAt         time.Time
}

type Caps struct {
	MaxLobbies            int
	MaxActiveGames        int
	LobbyIdleTimeout      time.Duration
	GameIdleTimeout       time.Duration
	FinishedGameRetention time.Duration
	CleanupInterval       time.Duration
}

// Manager is the process-wide lobby/game registry with capacity caps and
// a background reaper.
type Manager struct {
	mu      sync.Mutex
	records map[string]*Record

	caps     Caps
	clock    func() time.Time
	log      *slog.Logger
	notifier Notifier
}

func NewManager(caps Caps, clock func() time.Time, logger *slog.Logger, notifier Notifier) *Manager {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Manager{
		records:  make(map[string]*Record),
		caps:     caps,
		clock:    clock,
		log:      logger,
		notifier: notifier,
	}
}

// CreateLobby registers a new lobby with host as its first player.
func (m *Manager) CreateLobby(size Size, host string) (*Lobby, error) {
	m.mu.Lock()
	live := 0
	for _, rec := range m.records {
		if !rec.Lobby.Expired {
			live++
		}
	}
	if live >= m.caps.MaxLobbies {
		m.mu.Unlock()
		return nil, ErrAtCapacity
	}
	l := New(size, host, m.clock())
	m.records[l.ID] = &Record{Lobby: l}
	m.mu.Unlock()

	m.notifier.LobbyListChanged(m.ListLobbies())
	return l, nil
}

func (m *Manager) lookup(id string) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok
}

// WithRecord runs fn holding the record lock. ErrNotFound if no such id.
func (m *Manager) WithRecord(id string, fn func(rec *Record) error) error {
	rec, ok := m.lookup(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return fn(rec)
}

// Join adds username to the lobby and fans out the change.
func (m *Manager) Join(id, username string) error {
	err := m.WithRecord(id, func(rec *Record) error {
		return rec.Lobby.Join(username, m.clock())
	})
	if err != nil {
		return err
	}
	m.notifier.LobbyChanged(id)
	m.notifier.LobbyListChanged(m.ListLobbies())
	return nil
}

// Leave removes username; leaving after the game started is refused.
func (m *Manager) Leave(id, username string) error {
	err := m.WithRecord(id, func(rec *Record) error {
		if rec.Lobby.Expired {
			return ErrGameStarted
		}
		return rec.Lobby.Leave(username, m.clock())
	})
	if err != nil {
		return err
	}
	m.notifier.LobbyChanged(id)
	m.notifier.LobbyListChanged(m.ListLobbies())
	return nil
}

// StartGame expires the lobby and attaches a fresh game, bounded by the
// active-game cap. Only the host may start, and only with enough players.
func (m *Manager) StartGame(id, username string, newGame func(players []string) (*game.Game, error)) error {
	rec, ok := m.lookup(id)
	if !ok {
		return ErrNotFound
	}

	m.mu.Lock()
	active := 0
	for _, r := range m.records {
		if r.Game != nil && !r.Finished {
			active++
		}
	}
	m.mu.Unlock()

	rec.mu.Lock()
	err := func() error {
		if rec.Lobby.Expired {
			return ErrGameStarted
		}
		if rec.Lobby.Host() != username {
			return ErrNotHost
		}
		if len(rec.Lobby.Players) < rec.Lobby.Size.Min {
			return ErrNotEnoughPlayers
		}
		if active >= m.caps.MaxActiveGames {
			return ErrTooManyGames
		}
		g, err := newGame(append([]string(nil), rec.Lobby.Players...))
		if err != nil {
			return err
		}
		now := m.clock()
		rec.Lobby.Expire(now)
		rec.Game = g
		rec.GameStartedAt = now
		rec.GameLastActivityAt = now
		return nil
	}()
	rec.mu.Unlock()
	if err != nil {
		return err
	}

	m.log.Info("game started", "lobby_id", id, "host", username)
	m.notifier.LobbyChanged(id)
	m.notifier.LobbyListChanged(m.ListLobbies())
	m.notifier.GameChanged(id)
	return nil
}

// WithGame runs fn on the record's game under the record lock, touches the
// game activity clock, and fans out one game tick when fn succeeds.
func (m *Manager) WithGame(id string, fn func(g *game.Game) error) error {
	rec, ok := m.lookup(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	if rec.Game == nil {
		rec.mu.Unlock()
		return ErrNotFound
	}
	err := fn(rec.Game)
	var ended *game.Result
	if err == nil {
		rec.GameLastActivityAt = m.clock()
		if rec.Game.State() == game.StateGameEnd && !rec.Finished {
			rec.Finished = true
			rec.FinishedAt = m.clock()
			ended = rec.Game.Result()
		}
	}
	rec.mu.Unlock()
	if err != nil {
		return err
	}
	m.notifier.GameChanged(id)
	if ended != nil {
		m.log.Info("game finished", "lobby_id", id)
		m.notifier.GameEnded(id, *ended)
	}
	return nil
}

// ReadGame runs fn on the game under the record lock without fan-out.
func (m *Manager) ReadGame(id string, fn func(g *game.Game) error) error {
	rec, ok := m.lookup(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.Game == nil {
		return ErrNotFound
	}
	return fn(rec.Game)
}

// ListLobbies returns non-expired lobbies, newest first.
func (m *Manager) ListLobbies() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for _, rec := range m.records {
		l := rec.Lobby
		if l.Expired {
			continue
		}
		out = append(out, Summary{
			ID:          l.ID,
			Host:        l.Host(),
			PlayerCount: len(l.Players),
			MaxPlayers:  l.Size.Max,
			IsFull:      l.IsFull(),
			CreatedAt:   l.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Run drives the reaper until ctx is done. One sweep completes before the
// next starts.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.caps.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("reaper stopped")
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.notifier.LobbyListChanged(m.ListLobbies())
			}
		}
	}
}

// Sweep deletes empty lobbies, idle lobbies, idle games and finished
// games past retention. Records whose lock is held are skipped rather
// than stalling gameplay. Returns the number of deletions.
func (m *Manager) Sweep() int {
	now := m.clock()

	m.mu.Lock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		rec, ok := m.lookup(id)
		if !ok {
			continue
		}
		if !rec.mu.TryLock() {
			continue
		}
		remove := false
		reason := ""
		l := rec.Lobby
		switch {
		case len(l.Players) == 0:
			remove, reason = true, "empty"
		case !l.Expired && now.Sub(l.LastActivityAt) > m.caps.LobbyIdleTimeout:
			remove, reason = true, "lobby idle"
		case rec.Finished && now.Sub(rec.FinishedAt) > m.caps.FinishedGameRetention:
			remove, reason = true, "finished game retention"
		case l.Expired && rec.Game != nil && !rec.Finished && now.Sub(rec.GameLastActivityAt) > m.caps.GameIdleTimeout:
			remove, reason = true, "game idle"
		}
		rec.mu.Unlock()

		if remove {
			m.mu.Lock()
			delete(m.records, id)
			m.mu.Unlock()
			deleted++
			m.log.Info("reaped", "lobby_id", id, "reason", reason)
		}
	}
	return deleted
}

// Count reports registry size; used by capacity tests.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
