// Package store is the persisted collaborator behind the coordinator: match
// rows and champion selections. Two implementations share one contract, a
// Postgres store for deployments and an in-memory store for dev mode and
// tests. All state transitions are single conditional updates so concurrent
// server processes can race safely on the same row.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cuevacelis/1vs1core-sub000/internal/state"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrStateConflict   = errors.New("match state changed underneath the update")
	ErrSelectionLocked = errors.New("selection is already locked")
	ErrNoSelection     = errors.New("no selection to lock")
)

type Match struct {
	ID           int64       `gorm:"primaryKey" json:"id"`
	TournamentID int64       `gorm:"index" json:"tournamentId"`
	Round        int         `json:"round"`
	Player1ID    int64       `json:"player1Id"`
	Player2ID    int64       `json:"player2Id"`
	WinnerID     *int64      `json:"winnerId,omitempty"`
	State        state.State `gorm:"type:varchar(32)" json:"state"`
	MatchDate    *time.Time  `json:"matchDate,omitempty"`
}

// Slot reports which side of the match a user occupies, if any.
func (m *Match) Slot(userID int64) (state.Slot, bool) {
	switch userID {
	case m.Player1ID:
		return state.SlotPlayer1, true
	case m.Player2ID:
		return state.SlotPlayer2, true
	default:
		return 0, false
	}
}

// ChampionSelection is the single active pick a player holds for a match.
// Re-selecting before lock overwrites the row in place; locking is terminal.
type ChampionSelection struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	MatchID       int64      `gorm:"uniqueIndex:idx_selection_match_player" json:"matchId"`
	PlayerID      int64      `gorm:"uniqueIndex:idx_selection_match_player" json:"playerId"`
	ChampionID    int64      `json:"championId"`
	Role          string     `json:"role,omitempty"`
	IsLocked      bool       `json:"isLocked"`
	SelectionDate time.Time  `json:"selectionDate"`
	LockDate      *time.Time `json:"lockDate,omitempty"`
}

type Store interface {
	CreateMatch(ctx context.Context, m *Match) error
	GetMatch(ctx context.Context, id int64) (*Match, error)
	ListMatches(ctx context.Context, tournamentID int64) ([]Match, error)

	// AdvanceMatch moves a match from one state to another as a single
	// conditional update. ErrStateConflict means the stored state was not
	// the expected one when the update landed.
	AdvanceMatch(ctx context.Context, id int64, from, to state.State) error
	// SetWinner completes a locked match and records the winner.
	SetWinner(ctx context.Context, id, winnerID int64) error
	// CancelMatch moves any non-terminal match to cancelled.
	CancelMatch(ctx context.Context, id int64) error

	// UpsertSelection records or overwrites a player's unlocked pick.
	// A locked row never regresses: the call fails with ErrSelectionLocked.
	UpsertSelection(ctx context.Context, matchID, playerID, championID int64, role string) (*ChampionSelection, error)
	// LockSelection stamps the lock on a player's current pick.
	LockSelection(ctx context.Context, matchID, playerID int64) (*ChampionSelection, error)
	Selections(ctx context.Context, matchID int64) ([]ChampionSelection, error)
	// ForceLockAll locks every unlocked selection of a match (selection
	// timeout expiry) and reports how many rows it touched.
	ForceLockAll(ctx context.Context, matchID int64) (int64, error)
}
