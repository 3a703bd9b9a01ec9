package game

const (
	StartingBalance = 6000
	HandSize        = 6
)

type Player struct {
	Username   string
	Balance    int
	Hand       []*Tile
	Shares     map[CorpID]int
	TakingTurn bool

	// NewlyRefilled points at the tile drawn on the most recent refill so
	// the client can highlight it. Nil before the first refill.
	NewlyRefilled *Position
}

func NewPlayer(username string) *Player {
	return &Player{
		Username: username,
		Balance:  StartingBalance,
		Shares:   make(map[CorpID]int),
	}
}

// HeldTile finds the unplaced hand tile at pos.
func (p *Player) HeldTile(pos Position) (*Tile, bool) {
	for _, t := range p.Hand {
		if t.Pos == pos && !t.Placed {
			return t, true
		}
	}
	return nil, false
}

func (p *Player) ShareCount(c CorpID) int {
	return p.Shares[c]
}
