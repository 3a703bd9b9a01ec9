package game

import "testing"

func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
		ok   bool
	}{
		{StateSetup, StatePlaceTile, true},
		{StateSetup, StateBuyStocks, false},
		{StatePlaceTile, StateEstablish, true},
		{StatePlaceTile, StateMergeConflict, true},
		{StatePlaceTile, StateAcquirerSelection, true},
		{StatePlaceTile, StateDefunctSelection, false},
		{StateTilePlaced, StateGameEnd, true},
		{StateEstablish, StateBuyStocks, true},
		{StateEstablish, StatePlaceTile, false},
		{StateBuyStocks, StateTilePlaced, true},
		{StateMerge, StateMerge, true},
		{StateMerge, StateDefunctSelection, true},
		{StateMergeConflict, StateMerge, true},
		{StateAcquirerSelection, StateDefunctSelection, true},
		{StateDefunctSelection, StateMerge, true},
		{StateGameEnd, StatePlaceTile, false},
	}
	for _, tc := range tests {
		m := NewStateMachine()
		m.Force(tc.from)
		err := m.Transition(tc.to)
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s should be valid: %v", tc.from, tc.to, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s -> %s should be rejected", tc.from, tc.to)
		}
		if tc.ok && !m.Is(tc.to) {
			t.Fatalf("machine did not move to %s", tc.to)
		}
		if !tc.ok && !m.Is(tc.from) {
			t.Fatalf("rejected transition must not move the machine")
		}
	}
}

func TestForceBypassesValidation(t *testing.T) {
	m := NewStateMachine()
	m.Force(StateGameEnd)
	if !m.Is(StateGameEnd) {
		t.Fatalf("force should land anywhere")
	}
}
