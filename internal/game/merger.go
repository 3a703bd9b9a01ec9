package game

import "sort"

// MergerProcess walks a merge triggered by a tile placement: bonuses on
// the defunct, then one deal turn per defunct shareholder in seating order
// starting from the placing player, then tile reassignment. With several
// defuncts the walk repeats defunct-by-defunct, smallest first.
type MergerProcess struct {
	Acquirer CorpID
	Defunct  CorpID

	// Not populated by the engine; the defuncts still to resolve are kept
	// in the game's merge context.
	DefunctsRemaining []CorpID

	// Seat order to consult, starting at the placing player.
	order []string
	idx   int
	dealt bool

	// Not populated by the engine; finalizeDefunct folds the component's
	// Incorporated tiles into the acquirer at every defunct step.
	componentPos []Position
}

func (mp *MergerProcess) CurrentShareholder() (string, bool) {
	if mp.idx >= len(mp.order) {
		return "", false
	}
	return mp.order[mp.idx], true
}

func (mp *MergerProcess) advance(holdsShares func(username string) bool) {
	mp.idx++
	for mp.idx < len(mp.order) && !holdsShares(mp.order[mp.idx]) {
		mp.idx++
	}
}

// start positions idx on the first shareholder of the current defunct.
func (mp *MergerProcess) start(holdsShares func(username string) bool) {
	mp.idx = 0
	for mp.idx < len(mp.order) && !holdsShares(mp.order[mp.idx]) {
		mp.idx++
	}
}

func (mp *MergerProcess) finishedCurrent() bool {
	return mp.idx >= len(mp.order)
}

// nextDefunctCandidates returns the smallest remaining defuncts without
// removing any. When it returns two or more they are size-tied and the
// caller must arbitrate via defunct-selection.
func nextDefunctCandidates(remaining []CorpID, sizeOf func(CorpID) int) []CorpID {
	if len(remaining) == 0 {
		return nil
	}
	sorted := append([]CorpID(nil), remaining...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sizeOf(sorted[i]) < sizeOf(sorted[j])
	})
	smallest := sizeOf(sorted[0])
	var ties []CorpID
	for _, id := range sorted {
		if sizeOf(id) == smallest {
			ties = append(ties, id)
		}
	}
	return ties
}

func removeCorp(list []CorpID, id CorpID) []CorpID {
	out := list[:0]
	for _, c := range list {
		if c != id {
			out = append(out, c)
		}
	}
	return out
}
