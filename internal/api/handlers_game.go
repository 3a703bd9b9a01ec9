package api

import (
	"math/rand"
	"net/http"
	"time"

	"acquire/internal/game"
	"acquire/internal/lobby"

	"github.com/go-chi/chi/v5"
)

const maxPurchasesPerTurn = 3

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.manager.StartGame(id, username(r), func(players []string) (*game.Game, error) {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		return game.New(players, game.RandomShuffle(rng))
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGameStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := username(r)

	var status game.Status
	err := s.manager.WithRecord(id, func(rec *lobby.Record) error {
		if !rec.Lobby.HasPlayer(user) {
			return lobby.ErrNotMember
		}
		if rec.Game == nil {
			return lobby.ErrNotFound
		}
		status = rec.Game.Status(user)
		return nil
	})
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, status)
	case lobby.ErrNotMember:
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		s.writeDomainError(w, err)
	}
}

func (s *Server) handlePlaceTile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if err := decodeJSON(r, &in); err != nil || in.X == nil || in.Y == nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "x and y are required")
		return
	}
	pos := game.Position{Row: *in.X, Col: *in.Y}
	if !pos.Valid() {
		writeError(w, http.StatusBadRequest, CodeValidation, "position outside the board")
		return
	}
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.PlaceTile(user, pos)
	})
}

func (s *Server) handleEstablish(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil || in.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "name is required")
		return
	}
	corp := game.CorpID(in.Name)
	if !game.ValidCorpID(corp) {
		writeError(w, http.StatusBadRequest, CodeValidation, "unknown corporation")
		return
	}
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.Establish(user, corp)
	})
}

func (s *Server) handleBuyStocks(w http.ResponseWriter, r *http.Request) {
	var in []struct {
		Name  string `json:"name"`
		Price int    `json:"price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid body")
		return
	}
	// Over-long batches truncate to the first three entries.
	if len(in) > maxPurchasesPerTurn {
		in = in[:maxPurchasesPerTurn]
	}
	orders := make([]game.Purchase, 0, len(in))
	for _, entry := range in {
		corp := game.CorpID(entry.Name)
		if !game.ValidCorpID(corp) {
			writeError(w, http.StatusBadRequest, CodeValidation, "unknown corporation")
			return
		}
		orders = append(orders, game.Purchase{Corp: corp, Price: entry.Price})
	}
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.BuyStocks(user, orders)
	})
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.EndTurn(user)
	})
}

func (s *Server) handleMergerDeal(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Sell  int `json:"sell"`
		Trade int `json:"trade"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid body")
		return
	}
	if in.Sell < 0 || in.Trade < 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, "sell and trade must be non-negative")
		return
	}
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.MergerDeal(user, in.Sell, in.Trade)
	})
}

func (s *Server) handleMergerEndTurn(w http.ResponseWriter, r *http.Request) {
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.MergerEndTurn(user)
	})
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Acquirer string `json:"acquirer"`
		Defunct  string `json:"defunct"`
	}
	if err := decodeJSON(r, &in); err != nil || in.Acquirer == "" || in.Defunct == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "acquirer and defunct are required")
		return
	}
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.ResolveConflict(user, game.CorpID(in.Acquirer), game.CorpID(in.Defunct))
	})
}

func (s *Server) handleResolveAcquirer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Acquirer string `json:"acquirer"`
	}
	if err := decodeJSON(r, &in); err != nil || in.Acquirer == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "acquirer is required")
		return
	}
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.ResolveAcquirer(user, game.CorpID(in.Acquirer))
	})
}

func (s *Server) handleConfirmDefunct(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Defunct string `json:"defunct"`
	}
	if err := decodeJSON(r, &in); err != nil || in.Defunct == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "defunct is required")
		return
	}
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.ConfirmDefunct(user, game.CorpID(in.Defunct))
	})
}

func (s *Server) handleEndMerge(w http.ResponseWriter, r *http.Request) {
	s.gameCall(w, r, func(g *game.Game, user string) error {
		return g.EndMerge(user)
	})
}

func (s *Server) handleEndResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result := game.Result{Players: []game.RankedPlayer{}, Bonuses: []game.BonusPayout{}}
	err := s.manager.ReadGame(id, func(g *game.Game) error {
		if res := g.Result(); res != nil {
			result = *res
		}
		return nil
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// gameCall runs one engine mutation for the cookie identity under the
// record lock and answers with the shared envelope.
func (s *Server) gameCall(w http.ResponseWriter, r *http.Request, fn func(g *game.Game, user string) error) {
	id := chi.URLParam(r, "id")
	user := username(r)
	err := s.manager.WithGame(id, func(g *game.Game) error {
		return fn(g, user)
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
