package game

import (
	"sort"
)

// Game is the server-side authority for one match. It owns the board, the
// draw pile, the corporation ledger, the market, the transcript and the
// state machine, and validates every player action against all of them.
// Game is not safe for concurrent use; callers serialize on the lobby
// record that owns it.
type Game struct {
	board    *Board
	stack    *TileStack
	ledger   *Ledger
	market   *StockMarket
	recorder *TurnRecorder
	sm       *StateMachine

	players []*Player
	current int

	lastPlaced Position
	openPlace  *TilePlaceActivity

	merge   *mergeContext
	merger  *MergerProcess
	bonuses []BonusPayout
	result  *Result
}

// mergeContext carries the arbitration state between a triggering
// placement and the per-defunct walks.
type mergeContext struct {
	actives            []CorpID
	acquirerCandidates []CorpID
	acquirer           CorpID
	defunctsLeft       []CorpID
	defunctCandidates  []CorpID
}

type RankedPlayer struct {
	Username string `json:"username"`
	Balance  int    `json:"balance"`
}

// Result is the final standing published at game end.
type Result struct {
	Players []RankedPlayer `json:"players"`
	Bonuses []BonusPayout  `json:"bonuses"`
}

// New deals a fresh game. The shuffle is injected so tests can pin the
// draw order. Seating order follows the drawn order tiles sorted by
// (row, col); each order tile is placed on the board up front.
func New(usernames []string, shuffle ShuffleFunc) (*Game, error) {
	if len(usernames) < 2 {
		return nil, ErrNotEnoughPlayers
	}
	g := &Game{
		board:    NewBoard(),
		stack:    NewTileStack(shuffle),
		ledger:   NewLedger(),
		recorder: NewTurnRecorder(),
		sm:       NewStateMachine(),
	}

	type seat struct {
		player *Player
		order  *Tile
	}
	seats := make([]seat, 0, len(usernames))
	for _, name := range usernames {
		p := NewPlayer(name)
		p.Hand = g.stack.DrawMany(HandSize)
		order, _ := g.stack.Draw()
		seats = append(seats, seat{player: p, order: order})
	}
	sort.SliceStable(seats, func(i, j int) bool {
		a, b := seats[i].order.Pos, seats[j].order.Pos
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	for _, s := range seats {
		s.order.Placed = true
		if _, err := g.board.Place(s.order.Pos); err != nil {
			return nil, err
		}
		g.players = append(g.players, s.player)
	}
	g.market = NewStockMarket(g.ledger, g.players)

	if err := g.sm.Transition(StatePlaceTile); err != nil {
		return nil, err
	}
	g.players[0].TakingTurn = true
	g.openTilePlace()
	return g, nil
}

func (g *Game) openTilePlace() {
	g.openPlace = &TilePlaceActivity{Player: g.players[g.current].Username}
	g.recorder.Record(g.openPlace)
}

func (g *Game) State() State {
	return g.sm.Current()
}

func (g *Game) CurrentPlayer() *Player {
	return g.players[g.current]
}

func (g *Game) Players() []*Player {
	return g.players
}

func (g *Game) findPlayer(username string) (*Player, bool) {
	for _, p := range g.players {
		if p.Username == username {
			return p, true
		}
	}
	return nil, false
}

func (g *Game) requireCurrent(username string) (*Player, error) {
	p, ok := g.findPlayer(username)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p != g.players[g.current] {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

// PlaceTile validates and applies the current player's placement, then
// routes to the follow-up state demanded by the connected component.
func (g *Game) PlaceTile(username string, pos Position) error {
	p, err := g.requireCurrent(username)
	if err != nil {
		return err
	}
	if !g.sm.Is(StatePlaceTile) {
		return ErrWrongState
	}
	if !pos.Valid() {
		return ErrInvalidPosition
	}
	tile, ok := p.HeldTile(pos)
	if !ok {
		return ErrTileNotHeld
	}
	if tile.Exchangeable {
		return ErrTileUnplayable
	}
	if _, occupied := g.board.PlacedAt(pos); occupied {
		return ErrPositionOccupied
	}

	// All checks passed; from here the placement fully applies.
	if _, err := g.board.Place(pos); err != nil {
		return err
	}
	tile.Placed = true
	g.lastPlaced = pos
	if g.openPlace != nil {
		g.openPlace.Pos = &Position{Row: pos.Row, Col: pos.Col}
	}

	component := g.board.ConnectedComponent(pos)
	groups := GroupByCorporation(component)
	var actives []CorpID
	for _, id := range CorpIDs {
		if _, ok := groups[id]; ok {
			actives = append(actives, id)
		}
	}

	switch {
	case len(actives) == 0:
		if len(component) >= 2 && len(g.ledger.Inactive()) > 0 {
			return g.sm.Transition(StateEstablish)
		}
		return g.sm.Transition(StateBuyStocks)
	case len(actives) == 1:
		g.growInto(actives[0], component)
		return g.sm.Transition(StateBuyStocks)
	default:
		return g.beginMergeResolution(actives)
	}
}

// growInto assigns the component's incorporated tiles to id and grows it
// by that count only.
func (g *Game) growInto(id CorpID, component []*PlacedTile) {
	c, _ := g.ledger.Get(id)
	inc := make([]*PlacedTile, 0)
	for _, t := range component {
		if t.BelongsTo == Incorporated {
			inc = append(inc, t)
		}
	}
	Assign(inc, id)
	c.Grow(len(inc))
	if c.Safe {
		g.markUnplayableTiles()
	}
}

// markUnplayableTiles flags every unplaced hand tile whose neighbors span
// two or more safe chains. Such a tile can never be legally played and is
// swapped out at the holder's next refill.
func (g *Game) markUnplayableTiles() {
	for _, p := range g.players {
		for _, t := range p.Hand {
			if t.Placed {
				continue
			}
			safe := make(map[CorpID]bool)
			for _, n := range neighbors(t.Pos) {
				pt, ok := g.board.PlacedAt(n)
				if !ok || pt.BelongsTo == Incorporated {
					continue
				}
				if c, ok := g.ledger.Get(pt.BelongsTo); ok && c.Safe {
					safe[c.ID] = true
				}
			}
			if len(safe) >= 2 {
				t.Exchangeable = true
			}
		}
	}
}

func (g *Game) sizeOf(id CorpID) int {
	c, _ := g.ledger.Get(id)
	return c.Size
}

// beginMergeResolution handles a placement connecting two or more active
// chains. Ties at the top demand client arbitration first.
func (g *Game) beginMergeResolution(actives []CorpID) error {
	g.merge = &mergeContext{actives: actives}

	maxSize := 0
	for _, id := range actives {
		if s := g.sizeOf(id); s > maxSize {
			maxSize = s
		}
	}
	var candidates []CorpID
	for _, id := range actives {
		if g.sizeOf(id) == maxSize {
			candidates = append(candidates, id)
		}
	}

	if len(candidates) > 1 {
		g.merge.acquirerCandidates = candidates
		player := g.players[g.current].Username
		if len(actives) == 2 {
			g.recorder.Record(&MergeConflictActivity{Player: player, Candidates: candidates})
			return g.sm.Transition(StateMergeConflict)
		}
		g.recorder.Record(&AcquirerSelectionActivity{Player: player, Candidates: candidates})
		return g.sm.Transition(StateAcquirerSelection)
	}

	acquirer := candidates[0]
	var defuncts []CorpID
	for _, id := range actives {
		if id != acquirer {
			defuncts = append(defuncts, id)
		}
	}
	return g.startMerger(acquirer, defuncts)
}

// startMerger picks the next defunct (smallest first) and opens its walk,
// detouring through defunct-selection on a size tie.
func (g *Game) startMerger(acquirer CorpID, defuncts []CorpID) error {
	g.merge.acquirer = acquirer
	g.merge.defunctsLeft = defuncts

	if err := g.sm.Transition(StateMerge); err != nil {
		// merge-internal hop; ingress already validated
		g.sm.Force(StateMerge)
	}
	return g.advanceToNextDefunct()
}

// advanceToNextDefunct opens the walk for the smallest remaining defunct,
// or closes the merge when none remain.
func (g *Game) advanceToNextDefunct() error {
	if len(g.merge.defunctsLeft) == 0 {
		g.merge = nil
		g.merger = nil
		return g.sm.Transition(StateBuyStocks)
	}
	candidates := nextDefunctCandidates(g.merge.defunctsLeft, g.sizeOf)
	if len(candidates) > 1 {
		g.merge.defunctCandidates = candidates
		g.recorder.Record(&DefunctSelectionActivity{
			Player:     g.players[g.current].Username,
			Candidates: candidates,
		})
		g.sm.Force(StateDefunctSelection)
		return nil
	}
	return g.beginDefunctStep(candidates[0])
}

// beginDefunctStep pays bonuses on the defunct and opens the shareholder
// walk starting from the placing player.
func (g *Game) beginDefunctStep(defunct CorpID) error {
	g.merge.defunctsLeft = removeCorp(g.merge.defunctsLeft, defunct)
	g.merge.defunctCandidates = nil
	g.sm.Force(StateMerge)

	g.recorder.Record(&MergeActivity{Acquirer: g.merge.acquirer, Defunct: defunct})

	c, _ := g.ledger.Get(defunct)
	payout := g.market.DistributeBonuses(c)
	if len(payout.Amounts) > 0 {
		g.bonuses = append(g.bonuses, payout)
	}

	order := make([]string, 0, len(g.players))
	for i := 0; i < len(g.players); i++ {
		order = append(order, g.players[(g.current+i)%len(g.players)].Username)
	}
	g.merger = &MergerProcess{
		Acquirer: g.merge.acquirer,
		Defunct:  defunct,
		order:    order,
	}
	g.merger.start(g.holdsDefunctShares)
	if g.merger.finishedCurrent() {
		return g.finalizeDefunct()
	}
	return nil
}

func (g *Game) holdsDefunctShares(username string) bool {
	p, ok := g.findPlayer(username)
	return ok && g.merger != nil && p.Shares[g.merger.Defunct] > 0
}

// MergerDeal applies the acting shareholder's one deal: sell some defunct
// shares at defunct price and trade others two-for-one into the acquirer.
func (g *Game) MergerDeal(username string, sell, trade int) error {
	if !g.sm.Is(StateMerge) || g.merger == nil {
		return ErrNoMergeInProgress
	}
	holder, ok := g.merger.CurrentShareholder()
	if !ok || holder != username {
		return ErrNotShareholderTurn
	}
	if g.merger.dealt {
		return ErrWrongState
	}
	p, _ := g.findPlayer(username)
	defunct, _ := g.ledger.Get(g.merger.Defunct)
	acquirer, _ := g.ledger.Get(g.merger.Acquirer)

	if sell < 0 || trade < 0 {
		return ErrInsufficientShares
	}
	if sell+trade > p.Shares[defunct.ID] {
		return ErrInsufficientShares
	}
	if acquirer.RemainingShares < trade/2 {
		return ErrNoSharesLeft
	}

	if err := g.market.Sell(p, defunct, sell); err != nil {
		return err
	}
	if err := g.market.Trade(p, defunct, acquirer, trade); err != nil {
		return err
	}
	g.merger.dealt = true
	return nil
}

// MergerEndTurn closes the acting shareholder's opportunity and moves the
// walk along, finalizing the defunct once everyone acted.
func (g *Game) MergerEndTurn(username string) error {
	if !g.sm.Is(StateMerge) || g.merger == nil {
		return ErrNoMergeInProgress
	}
	holder, ok := g.merger.CurrentShareholder()
	if !ok || holder != username {
		return ErrNotShareholderTurn
	}
	g.merger.dealt = false
	g.merger.advance(g.holdsDefunctShares)
	if g.merger.finishedCurrent() {
		return g.finalizeDefunct()
	}
	return nil
}

// finalizeDefunct folds the defunct into the acquirer: remaining holder
// shares liquidate at defunct price, tiles and newly connected
// incorporated tiles move over, sizes update, the defunct retires.
func (g *Game) finalizeDefunct() error {
	defunct, _ := g.ledger.Get(g.merger.Defunct)
	acquirer, _ := g.ledger.Get(g.merger.Acquirer)

	g.market.Liquidate(defunct)

	assigned := 0
	for _, pt := range g.board.PlacedTiles() {
		if pt.BelongsTo == defunct.ID {
			pt.BelongsTo = acquirer.ID
			assigned++
		}
	}
	for _, pt := range g.board.ConnectedComponent(g.lastPlaced) {
		if pt.BelongsTo == Incorporated {
			pt.BelongsTo = acquirer.ID
			assigned++
		}
	}
	acquirer.Grow(assigned)
	if acquirer.Safe {
		g.markUnplayableTiles()
	}

	defunct.Size = 0
	defunct.Safe = false
	g.merger = nil
	return g.advanceToNextDefunct()
}

// ResolveConflict settles a two-chain size tie: the current player names
// both roles.
func (g *Game) ResolveConflict(username string, acquirer, defunct CorpID) error {
	if _, err := g.requireCurrent(username); err != nil {
		return err
	}
	if !g.sm.Is(StateMergeConflict) || g.merge == nil {
		return ErrWrongState
	}
	if !containsCorp(g.merge.acquirerCandidates, acquirer) || !containsCorp(g.merge.acquirerCandidates, defunct) || acquirer == defunct {
		return ErrUnknownCorporation
	}
	g.merge.acquirerCandidates = nil
	return g.startMerger(acquirer, []CorpID{defunct})
}

// ResolveAcquirer settles a multi-chain tie at the top; the rest of the
// actives become defuncts.
func (g *Game) ResolveAcquirer(username string, acquirer CorpID) error {
	if _, err := g.requireCurrent(username); err != nil {
		return err
	}
	if !g.sm.Is(StateAcquirerSelection) || g.merge == nil {
		return ErrWrongState
	}
	if !containsCorp(g.merge.acquirerCandidates, acquirer) {
		return ErrUnknownCorporation
	}
	g.merge.acquirerCandidates = nil
	var defuncts []CorpID
	for _, id := range g.merge.actives {
		if id != acquirer {
			defuncts = append(defuncts, id)
		}
	}
	return g.startMerger(acquirer, defuncts)
}

// ConfirmDefunct settles a size tie among the remaining defuncts.
func (g *Game) ConfirmDefunct(username string, defunct CorpID) error {
	if _, err := g.requireCurrent(username); err != nil {
		return err
	}
	if !g.sm.Is(StateDefunctSelection) || g.merge == nil {
		return ErrWrongState
	}
	if !containsCorp(g.merge.defunctCandidates, defunct) {
		return ErrUnknownCorporation
	}
	return g.beginDefunctStep(defunct)
}

// EndMerge acknowledges a finished merge walk. It only has work to do if
// the walk ran dry without an explicit merger end-turn.
func (g *Game) EndMerge(username string) error {
	if g.sm.Is(StateMerge) && g.merger != nil && g.merger.finishedCurrent() {
		return g.finalizeDefunct()
	}
	return nil
}

// Establish activates the chosen chain on the just-placed component and
// grants the founder a free share when one remains.
func (g *Game) Establish(username string, id CorpID) error {
	p, err := g.requireCurrent(username)
	if err != nil {
		return err
	}
	if !g.sm.Is(StateEstablish) {
		return ErrWrongState
	}
	if !ValidCorpID(id) {
		return ErrUnknownCorporation
	}
	c, _ := g.ledger.Get(id)
	if c.Active {
		return ErrCorporationActive
	}

	component := g.board.ConnectedComponent(g.lastPlaced)
	inc := make([]*PlacedTile, 0, len(component))
	for _, t := range component {
		if t.BelongsTo == Incorporated {
			inc = append(inc, t)
		}
	}
	Assign(inc, id)
	c.Establish(len(inc))
	if c.Safe {
		g.markUnplayableTiles()
	}
	if c.RemainingShares > 0 {
		c.RemainingShares--
		p.Shares[id]++
	}
	g.recorder.Record(&EstablishActivity{Player: username, Corp: id})
	return g.sm.Transition(StateBuyStocks)
}

// BuyStocks applies up to three purchases in order, skipping the ones the
// market rejects, and moves the turn to tile-placed.
func (g *Game) BuyStocks(username string, orders []Purchase) error {
	p, err := g.requireCurrent(username)
	if err != nil {
		return err
	}
	if !g.sm.Is(StateBuyStocks) {
		return ErrWrongState
	}
	for _, o := range orders {
		if !ValidCorpID(o.Corp) {
			return ErrUnknownCorporation
		}
	}
	done := g.market.BuyBatch(p, orders)
	g.recorder.Record(&BuyStocksActivity{Player: username, Purchases: done})
	return g.sm.Transition(StateTilePlaced)
}

// gameEndCondition: at least one active chain, and either a 41-tile chain
// exists or every active chain is safe.
func (g *Game) gameEndCondition() bool {
	actives := g.ledger.Active()
	if len(actives) == 0 {
		return false
	}
	allSafe := true
	for _, c := range actives {
		if c.Size >= 41 {
			return true
		}
		if !c.Safe {
			allSafe = false
		}
	}
	return allSafe
}

// EndTurn finishes the turn: either the game terminates, or the hand
// refills, the seat rotates, and a fresh tile-place opens.
func (g *Game) EndTurn(username string) error {
	p, err := g.requireCurrent(username)
	if err != nil {
		return err
	}
	if !g.sm.Is(StateTilePlaced) {
		return ErrWrongState
	}

	if g.gameEndCondition() {
		return g.endGame()
	}

	g.refillHand(p)
	p.TakingTurn = false
	g.current = (g.current + 1) % len(g.players)
	g.players[g.current].TakingTurn = true

	if err := g.sm.Transition(StatePlaceTile); err != nil {
		return err
	}
	g.recorder.Advance()
	g.openTilePlace()
	return nil
}

// refillHand drops placed tiles, swaps out exchangeable ones (they return
// to the bottom of the stack so the tile census stays at 108), then draws
// back up to six.
func (g *Game) refillHand(p *Player) {
	kept := p.Hand[:0]
	for _, t := range p.Hand {
		switch {
		case t.Placed:
			// lives on the board now
		case t.Exchangeable:
			g.stack.tiles = append(g.stack.tiles, t)
		default:
			kept = append(kept, t)
		}
	}
	p.Hand = kept
	p.NewlyRefilled = nil
	for len(p.Hand) < HandSize {
		t, ok := g.stack.Draw()
		if !ok {
			break
		}
		p.Hand = append(p.Hand, t)
		pos := t.Pos
		p.NewlyRefilled = &pos
	}
	g.markUnplayableTiles()
}

// endGame pays every active chain out once, liquidates them, and freezes
// the final ranking.
func (g *Game) endGame() error {
	for _, c := range g.ledger.Active() {
		payout := g.market.DistributeBonuses(c)
		if len(payout.Amounts) > 0 {
			g.bonuses = append(g.bonuses, payout)
		}
		g.market.Liquidate(c)
	}
	ranked := make([]RankedPlayer, 0, len(g.players))
	for _, p := range g.players {
		ranked = append(ranked, RankedPlayer{Username: p.Username, Balance: p.Balance})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Balance > ranked[j].Balance
	})
	g.result = &Result{Players: ranked, Bonuses: g.bonuses}
	return g.sm.Transition(StateGameEnd)
}

// Result returns the final standing, nil before game end.
func (g *Game) Result() *Result {
	return g.result
}

func containsCorp(list []CorpID, id CorpID) bool {
	for _, c := range list {
		if c == id {
			return true
		}
	}
	return false
}
