package game

import "testing"

func TestStatsPriceBands(t *testing.T) {
	tests := []struct {
		corp CorpID
		size int
		want int
	}{
		{Zeta, 0, 100},
		{Zeta, 2, 200},
		{Sackson, 3, 300},
		{America, 2, 300},
		{Hydra, 5, 600},
		{Fusion, 10, 700},
		{Phoenix, 2, 400},
		{Quantum, 11, 900},
		{Phoenix, 21, 1000},
		{Quantum, 31, 1100},
		{Phoenix, 41, 1200},
	}
	for _, tc := range tests {
		c := NewCorporation(tc.corp)
		c.Size = tc.size
		got := c.Stats()
		if got.Price != tc.want {
			t.Fatalf("%s size=%d price=%d want=%d", tc.corp, tc.size, got.Price, tc.want)
		}
		if got.MajorityBonus != tc.want*10 || got.MinorityBonus != tc.want*5 {
			t.Fatalf("%s size=%d bonuses %d/%d inconsistent with price %d", tc.corp, tc.size, got.MajorityBonus, got.MinorityBonus, got.Price)
		}
	}
}

func TestSafeMarking(t *testing.T) {
	c := NewCorporation(Hydra)
	c.Establish(2)
	if c.Safe {
		t.Fatalf("size 2 must not be safe")
	}
	c.Grow(8)
	if c.Safe {
		t.Fatalf("size 10 must not be safe")
	}
	c.Grow(1)
	if !c.Safe {
		t.Fatalf("size 11 must be safe")
	}
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	if len(l.All()) != 7 {
		t.Fatalf("expected 7 chains, got %d", len(l.All()))
	}
	if len(l.Active()) != 0 || len(l.Inactive()) != 7 {
		t.Fatalf("fresh ledger should have no active chains")
	}
	c, ok := l.Get(Sackson)
	if !ok || c.RemainingShares != TotalShares {
		t.Fatalf("sackson should start with %d shares", TotalShares)
	}
	c.Establish(2)
	if len(l.Active()) != 1 {
		t.Fatalf("expected 1 active chain")
	}
	if _, ok := l.Get(Incorporated); ok {
		t.Fatalf("incorporated is not a tradeable chain")
	}
}
