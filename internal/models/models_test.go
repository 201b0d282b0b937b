package models

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateTodo, StateOngoing, true},
		{StateOngoing, StateTodo, true},
		{StateOngoing, StateDone, true},
		{StateDone, StateOngoing, true},
		{StateTodo, StateDone, false},
		{StateDone, StateTodo, false},
		{StateTodo, StateTodo, false},
		{StateOngoing, StateOngoing, false},
		{StateDone, StateDone, false},
		{State("bogus"), StateTodo, false},
		{StateTodo, State("bogus"), false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s): got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestNextStates(t *testing.T) {
	cases := []struct {
		from State
		want []State
	}{
		{StateTodo, []State{StateOngoing}},
		{StateOngoing, []State{StateTodo, StateDone}},
		{StateDone, []State{StateOngoing}},
		{State("bogus"), nil},
	}
	for _, c := range cases {
		got := NextStates(c.from)
		if len(got) != len(c.want) {
			t.Fatalf("NextStates(%s): got %v, want %v", c.from, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("NextStates(%s)[%d]: got %s, want %s", c.from, i, got[i], c.want[i])
			}
		}
	}
}

// Every state reachable through NextStates must round-trip through CanTransition.
func TestNextStatesAgreesWithCanTransition(t *testing.T) {
	all := []State{StateTodo, StateOngoing, StateDone}
	for _, from := range all {
		valid := map[State]bool{}
		for _, to := range NextStates(from) {
			valid[to] = true
			if !CanTransition(from, to) {
				t.Errorf("NextStates(%s) includes %s but CanTransition rejects it", from, to)
			}
		}
		for _, to := range all {
			if CanTransition(from, to) && !valid[to] {
				t.Errorf("CanTransition(%s, %s) allowed but missing from NextStates", from, to)
			}
		}
	}
}

func TestIsValidState(t *testing.T) {
	for _, s := range []State{StateTodo, StateOngoing, StateDone} {
		if !IsValidState(s) {
			t.Errorf("IsValidState(%s): got false, want true", s)
		}
	}
	if IsValidState(State("open")) {
		t.Error("IsValidState(open): got true, want false")
	}
}
