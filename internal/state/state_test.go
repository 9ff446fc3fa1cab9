package state

import (
	"errors"
	"testing"
)

func TestConnectTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    State
		slot    Slot
		want    State
		wantErr bool
	}{
		{name: "first connect by player1", from: Active, slot: SlotPlayer1, want: Player1Connected},
		{name: "first connect by player2", from: Active, slot: SlotPlayer2, want: Player2Connected},
		{name: "player2 completes the pair", from: Player1Connected, slot: SlotPlayer2, want: BothConnected},
		{name: "player1 completes the pair", from: Player2Connected, slot: SlotPlayer1, want: BothConnected},
		{name: "player1 reconnect is a no-op", from: Player1Connected, slot: SlotPlayer1, want: Player1Connected},
		{name: "player2 reconnect is a no-op", from: Player2Connected, slot: SlotPlayer2, want: Player2Connected},
		{name: "connect before activation", from: Pending, slot: SlotPlayer1, wantErr: true},
		{name: "connect during selection", from: InSelection, slot: SlotPlayer1, wantErr: true},
		{name: "connect when both already in", from: BothConnected, slot: SlotPlayer2, wantErr: true},
		{name: "connect to completed match", from: Completed, slot: SlotPlayer1, wantErr: true},
		{name: "connect to cancelled match", from: Cancelled, slot: SlotPlayer2, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Connect(tc.from, tc.slot)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("want ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// Every transition function must either yield a known state or refuse the
// move; nothing may ever leave the enumerated set.
func TestTransitionsStayInEnumeratedSet(t *testing.T) {
	states := []State{
		Pending, Active, Player1Connected, Player2Connected,
		BothConnected, InSelection, Locked, Completed, Cancelled,
	}
	fns := map[string]func(State) (State, error){
		"activate":         Activate,
		"begin_selection":  BeginSelection,
		"finish_selection": FinishSelection,
		"complete":         Complete,
		"cancel":           Cancel,
		"connect_p1":       func(s State) (State, error) { return Connect(s, SlotPlayer1) },
		"connect_p2":       func(s State) (State, error) { return Connect(s, SlotPlayer2) },
	}

	for name, fn := range fns {
		for _, s := range states {
			next, err := fn(s)
			if err != nil {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("%s(%s): unexpected error %v", name, s, err)
				}
				continue
			}
			if !Valid(next) {
				t.Fatalf("%s(%s) produced state %q outside the enumerated set", name, s, next)
			}
		}
	}
}

func TestLifecycleProgression(t *testing.T) {
	s := Pending
	steps := []func(State) (State, error){
		Activate,
		func(s State) (State, error) { return Connect(s, SlotPlayer1) },
		func(s State) (State, error) { return Connect(s, SlotPlayer2) },
		BeginSelection,
		FinishSelection,
		Complete,
	}
	want := []State{Active, Player1Connected, BothConnected, InSelection, Locked, Completed}

	for i, step := range steps {
		next, err := step(s)
		if err != nil {
			t.Fatalf("step %d from %q: %v", i, s, err)
		}
		if next != want[i] {
			t.Fatalf("step %d: got %q, want %q", i, next, want[i])
		}
		s = next
	}
	if !s.Terminal() {
		t.Fatalf("completed match should be terminal")
	}
}

func TestCancelFromAnyNonTerminal(t *testing.T) {
	for _, s := range []State{Pending, Active, Player1Connected, Player2Connected, BothConnected, InSelection, Locked} {
		got, err := Cancel(s)
		if err != nil || got != Cancelled {
			t.Fatalf("cancel from %q: got %q, %v", s, got, err)
		}
	}
	for _, s := range []State{Completed, Cancelled} {
		if _, err := Cancel(s); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancel from terminal %q should fail, got %v", s, err)
		}
	}
}
