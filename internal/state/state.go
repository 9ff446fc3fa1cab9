// Package state holds the match lifecycle rules. It is pure: callers decide
// when to consult it and where the resulting state gets persisted.
package state

import "errors"

var ErrInvalidTransition = errors.New("invalid state transition")

type State string

const (
	Pending          State = "pending"
	Active           State = "active"
	Player1Connected State = "player1_connected"
	Player2Connected State = "player2_connected"
	BothConnected    State = "both_connected"
	InSelection      State = "in_selection"
	Locked           State = "locked"
	Completed        State = "completed"
	Cancelled        State = "cancelled"
)

// Slot identifies which side of the match a participant occupies.
type Slot int

const (
	SlotPlayer1 Slot = 1
	SlotPlayer2 Slot = 2
)

var all = map[State]bool{
	Pending: true, Active: true,
	Player1Connected: true, Player2Connected: true,
	BothConnected: true, InSelection: true,
	Locked: true, Completed: true, Cancelled: true,
}

func Valid(s State) bool { return all[s] }

// Terminal states accept no further transitions except nothing at all.
func (s State) Terminal() bool { return s == Completed || s == Cancelled }

// Connect returns the state after the given participant slot connects.
// A player repeating connect while the match sits in their own connected
// state gets the same state back (reconnect before the opponent arrives).
func Connect(s State, slot Slot) (State, error) {
	switch s {
	case Active:
		if slot == SlotPlayer1 {
			return Player1Connected, nil
		}
		return Player2Connected, nil
	case Player1Connected:
		if slot == SlotPlayer1 {
			return Player1Connected, nil
		}
		return BothConnected, nil
	case Player2Connected:
		if slot == SlotPlayer2 {
			return Player2Connected, nil
		}
		return BothConnected, nil
	default:
		return s, ErrInvalidTransition
	}
}

// Activate is the admin transition that opens a match for connects.
func Activate(s State) (State, error) {
	if s != Pending {
		return s, ErrInvalidTransition
	}
	return Active, nil
}

// BeginSelection opens the live selection phase once both players are in.
func BeginSelection(s State) (State, error) {
	if s != BothConnected {
		return s, ErrInvalidTransition
	}
	return InSelection, nil
}

// FinishSelection closes the selection phase (both locked, or timeout).
func FinishSelection(s State) (State, error) {
	if s != InSelection {
		return s, ErrInvalidTransition
	}
	return Locked, nil
}

// Complete records the match result. Only a fully locked match completes.
func Complete(s State) (State, error) {
	if s != Locked {
		return s, ErrInvalidTransition
	}
	return Completed, nil
}

// Cancel is admin-only and reachable from any non-terminal state.
func Cancel(s State) (State, error) {
	if s.Terminal() {
		return s, ErrInvalidTransition
	}
	return Cancelled, nil
}
