package lobby

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var (
	ErrLobbyFull         = errors.New("lobby is full")
	ErrDuplicateUsername = errors.New("username already taken in this lobby")
	ErrNotMember         = errors.New("not a member of this lobby")
	ErrLobbyExpired      = errors.New("lobby has expired")
	ErrNotFound          = errors.New("lobby not found")
	ErrAtCapacity        = errors.New("at capacity")
	ErrTooManyGames      = errors.New("too many active games")
	ErrNotHost           = errors.New("only the host can do that")
	ErrNotEnoughPlayers  = errors.New("not enough players to start")
	ErrGameStarted       = errors.New("game already started")
)

type Size struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Lobby is a waiting room. The first joiner is the host; the host does
// not rotate, it is whoever sits at index 0 after removals.
type Lobby struct {
	ID             string
	Size           Size
	Players        []string
	Expired        bool
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// NewID returns an opaque 16-hex token.
func NewID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func New(size Size, host string, now time.Time) *Lobby {
	return &Lobby{
		ID:             NewID(),
		Size:           size,
		Players:        []string{host},
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func (l *Lobby) Host() string {
	if len(l.Players) == 0 {
		return ""
	}
	return l.Players[0]
}

func (l *Lobby) HasPlayer(username string) bool {
	for _, p := range l.Players {
		if p == username {
			return true
		}
	}
	return false
}

func (l *Lobby) IsFull() bool {
	return len(l.Players) >= l.Size.Max
}

func (l *Lobby) Join(username string, now time.Time) error {
	if l.Expired {
		return ErrLobbyExpired
	}
	if l.HasPlayer(username) {
		return ErrDuplicateUsername
	}
	if l.IsFull() {
		return ErrLobbyFull
	}
	l.Players = append(l.Players, username)
	l.LastActivityAt = now
	return nil
}

func (l *Lobby) Leave(username string, now time.Time) error {
	for i, p := range l.Players {
		if p == username {
			l.Players = append(l.Players[:i], l.Players[i+1:]...)
			l.LastActivityAt = now
			return nil
		}
	}
	return ErrNotMember
}

// Expire flips the one-way flag when the game starts.
func (l *Lobby) Expire(now time.Time) {
	l.Expired = true
	l.LastActivityAt = now
}

// LobbyStatus is the per-user waiting-room snapshot.
type LobbyStatus struct {
	ID              string   `json:"id"`
	Players         []string `json:"players"`
	IsFull          bool     `json:"isFull"`
	HasExpired      bool     `json:"hasExpired"`
	PossibleToStart bool     `json:"isPossibleToStart"`
	Host            string   `json:"host"`
	Self            string   `json:"self"`
	MaxPlayers      int      `json:"maxPlayers"`
	MinPlayers      int      `json:"minPlayers"`
}

func (l *Lobby) Status(forUser string) LobbyStatus {
	self := ""
	if l.HasPlayer(forUser) {
		self = forUser
	}
	players := append([]string(nil), l.Players...)
	return LobbyStatus{
		ID:              l.ID,
		Players:         players,
		IsFull:          l.IsFull(),
		HasExpired:      l.Expired,
		PossibleToStart: len(l.Players) >= l.Size.Min,
		Host:            l.Host(),
		Self:            self,
		MaxPlayers:      l.Size.Max,
		MinPlayers:      l.Size.Min,
	}
}
