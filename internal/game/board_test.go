package game

import "testing"

func TestPlaceRejectsDuplicatesAndOffBoard(t *testing.T) {
	b := NewBoard()
	if _, err := b.Place(Position{Row: 0, Col: 0}); err != nil {
		t.Fatalf("first placement failed: %v", err)
	}
	if _, err := b.Place(Position{Row: 0, Col: 0}); err != ErrPositionOccupied {
		t.Fatalf("expected ErrPositionOccupied, got %v", err)
	}
	for _, pos := range []Position{{Row: -1, Col: 0}, {Row: 9, Col: 0}, {Row: 0, Col: 12}} {
		if _, err := b.Place(pos); err != ErrInvalidPosition {
			t.Fatalf("expected ErrInvalidPosition for %v, got %v", pos, err)
		}
	}
}

func TestConnectedComponent(t *testing.T) {
	b := NewBoard()
	placed := []Position{
		{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 1}, {Row: 2, Col: 1},
		{Row: 5, Col: 5}, // disconnected
	}
	for _, pos := range placed {
		if _, err := b.Place(pos); err != nil {
			t.Fatalf("place %v: %v", pos, err)
		}
	}

	component := b.ConnectedComponent(Position{Row: 0, Col: 0})
	if len(component) != 4 {
		t.Fatalf("expected component of 4, got %d", len(component))
	}
	for _, pt := range component {
		if pt.Pos == (Position{Row: 5, Col: 5}) {
			t.Fatalf("disconnected tile leaked into component")
		}
	}

	if got := b.ConnectedComponent(Position{Row: 5, Col: 5}); len(got) != 1 {
		t.Fatalf("expected singleton component, got %d", len(got))
	}
	if got := b.ConnectedComponent(Position{Row: 8, Col: 8}); got != nil {
		t.Fatalf("expected nil component for empty cell, got %v", got)
	}
}

func TestGroupByCorporationAndAssign(t *testing.T) {
	b := NewBoard()
	p1, _ := b.Place(Position{Row: 0, Col: 0})
	p2, _ := b.Place(Position{Row: 0, Col: 1})
	p3, _ := b.Place(Position{Row: 0, Col: 2})
	p1.BelongsTo = Phoenix
	p2.BelongsTo = Phoenix

	groups := GroupByCorporation([]*PlacedTile{p1, p2, p3})
	if len(groups[Phoenix]) != 2 || len(groups[Incorporated]) != 1 {
		t.Fatalf("unexpected grouping: %v", groups)
	}

	Assign(groups[Incorporated], Phoenix)
	if p3.BelongsTo != Phoenix {
		t.Fatalf("assign did not rewrite ownership")
	}
}
