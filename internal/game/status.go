package game

import "sort"

// Status is the per-user snapshot served by the status endpoint. Only the
// requesting player's hand, balance and shares are included; other seats
// expose their username and turn flag so nothing hidden leaks.
type Status struct {
	State        State            `json:"state"`
	Players      []SeatView       `json:"players"`
	Self         *SelfView        `json:"self,omitempty"`
	Board        []PlacedTile     `json:"board"`
	Corporations []CorpView       `json:"corporations"`
	TilesLeft    int              `json:"tilesLeft"`
	CurrentTurn  []ActivityRecord `json:"currentTurn"`
	PreviousTurn []ActivityRecord `json:"previousTurn"`
	Merge        *MergeView       `json:"merge,omitempty"`
}

type SeatView struct {
	Username   string `json:"username"`
	TakingTurn bool   `json:"takingTurn"`
}

type SelfView struct {
	Username      string         `json:"username"`
	Balance       int            `json:"balance"`
	Hand          []Tile         `json:"hand"`
	Shares        map[CorpID]int `json:"shares"`
	TakingTurn    bool           `json:"takingTurn"`
	NewlyRefilled *Position      `json:"newlyRefilled,omitempty"`
}

type CorpView struct {
	Corporation
	CorpStats
}

type MergeView struct {
	Acquirer          CorpID   `json:"acquirer,omitempty"`
	Defunct           CorpID   `json:"defunct,omitempty"`
	ActiveShareholder string   `json:"activeShareholder,omitempty"`
	Candidates        []CorpID `json:"candidates,omitempty"`
}

// Status builds the snapshot for username. Repeated calls with no
// intervening mutation return equal snapshots.
func (g *Game) Status(username string) Status {
	st := Status{
		State:     g.sm.Current(),
		TilesLeft: g.stack.Len(),
	}
	for _, p := range g.players {
		st.Players = append(st.Players, SeatView{Username: p.Username, TakingTurn: p.TakingTurn})
	}
	if p, ok := g.findPlayer(username); ok {
		hand := make([]Tile, 0, len(p.Hand))
		for _, t := range p.Hand {
			if !t.Placed {
				hand = append(hand, *t)
			}
		}
		shares := make(map[CorpID]int, len(p.Shares))
		for id, n := range p.Shares {
			if n > 0 {
				shares[id] = n
			}
		}
		st.Self = &SelfView{
			Username:      p.Username,
			Balance:       p.Balance,
			Hand:          hand,
			Shares:        shares,
			TakingTurn:    p.TakingTurn,
			NewlyRefilled: p.NewlyRefilled,
		}
	}
	for _, pt := range g.board.PlacedTiles() {
		st.Board = append(st.Board, *pt)
	}
	sortPlacedTiles(st.Board)
	for _, c := range g.ledger.All() {
		st.Corporations = append(st.Corporations, CorpView{Corporation: *c, CorpStats: c.Stats()})
	}
	st.CurrentTurn, _ = EncodeActivities(g.recorder.Current())
	st.PreviousTurn, _ = EncodeActivities(g.recorder.Previous())

	if g.merge != nil {
		mv := &MergeView{Acquirer: g.merge.acquirer}
		switch {
		case g.sm.Is(StateMergeConflict), g.sm.Is(StateAcquirerSelection):
			mv.Candidates = g.merge.acquirerCandidates
			mv.Acquirer = ""
		case g.sm.Is(StateDefunctSelection):
			mv.Candidates = g.merge.defunctCandidates
		}
		if g.merger != nil {
			mv.Defunct = g.merger.Defunct
			if holder, ok := g.merger.CurrentShareholder(); ok {
				mv.ActiveShareholder = holder
			}
		}
		st.Merge = mv
	}
	return st
}

func sortPlacedTiles(tiles []PlacedTile) {
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i].Pos, tiles[j].Pos
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
}
