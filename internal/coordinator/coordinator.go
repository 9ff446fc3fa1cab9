// Package coordinator owns the authoritative match-selection logic: it
// validates commands against the persisted match, applies the lifecycle
// rules, writes through the store, and only then hands the committed fact to
// the broadcaster. Nothing else in the process mutates Match or
// ChampionSelection rows.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cuevacelis/1vs1core-sub000/internal/state"
	"github.com/cuevacelis/1vs1core-sub000/internal/store"
	"github.com/cuevacelis/1vs1core-sub000/pkg/types"
)

var (
	// ErrForbidden rejects commands from users who are not participants of
	// the referenced match.
	ErrForbidden = errors.New("caller is not a participant of this match")
	// ErrInvalidWinner rejects a completion whose winner is not one of the
	// two participants.
	ErrInvalidWinner = errors.New("winner is not a participant of this match")
)

// Broadcaster delivers an already-committed event to a match room.
type Broadcaster interface {
	Publish(matchID int64, ev types.Event, excludeConnID string)
}

type Coordinator struct {
	store store.Store
	bus   Broadcaster
	log   *zap.Logger

	selectionTimeout time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
}

func New(st store.Store, bus Broadcaster, log *zap.Logger, selectionTimeout time.Duration) *Coordinator {
	return &Coordinator{
		store:            st,
		bus:              bus,
		log:              log,
		selectionTimeout: selectionTimeout,
		timers:           make(map[int64]*time.Timer),
	}
}

// Connect records that a participant has joined their match. Two
// simultaneous connects race on the stored state, so the conditional update
// is retried against a fresh read until one interleaving wins; the losing
// caller simply lands on the follow-up transition.
func (c *Coordinator) Connect(ctx context.Context, matchID, userID int64) error {
	for attempt := 0; attempt < 3; attempt++ {
		m, err := c.store.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		slot, ok := m.Slot(userID)
		if !ok {
			return ErrForbidden
		}
		next, err := state.Connect(m.State, slot)
		if err != nil {
			return err
		}
		if next == m.State {
			// Reconnect before the opponent arrived; nothing to persist.
			return nil
		}
		if err := c.store.AdvanceMatch(ctx, matchID, m.State, next); err != nil {
			if errors.Is(err, store.ErrStateConflict) {
				continue
			}
			return err
		}
		c.log.Info("participant connected",
			zap.Int64("match_id", matchID),
			zap.Int64("user_id", userID),
			zap.String("state", string(next)))
		c.publishMatchUpdate(matchID, next, nil, "")
		if next == state.BothConnected {
			c.beginSelection(ctx, matchID)
		}
		return nil
	}
	return store.ErrStateConflict
}

// beginSelection opens the live phase once both players are in and arms the
// server-side timeout. A lost conditional update means another process got
// there first, which is fine.
func (c *Coordinator) beginSelection(ctx context.Context, matchID int64) {
	if err := c.store.AdvanceMatch(ctx, matchID, state.BothConnected, state.InSelection); err != nil {
		if !errors.Is(err, store.ErrStateConflict) {
			c.log.Error("begin selection", zap.Int64("match_id", matchID), zap.Error(err))
		}
		return
	}
	c.armSelectionTimer(matchID)
	c.publishMatchUpdate(matchID, state.InSelection, nil, "")
}

// SelectChampion upserts a player's unlocked pick and fans the new pick out
// to the room. excludeConnID suppresses the echo to the acting connection.
func (c *Coordinator) SelectChampion(ctx context.Context, matchID, playerID, championID int64, role, excludeConnID string) (*store.ChampionSelection, error) {
	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Slot(playerID); !ok {
		return nil, ErrForbidden
	}
	if m.State.Terminal() {
		return nil, state.ErrInvalidTransition
	}
	sel, err := c.store.UpsertSelection(ctx, matchID, playerID, championID, role)
	if err != nil {
		return nil, err
	}
	ev := types.Event{
		Type:       types.TypeChampionSelected,
		MatchID:    matchID,
		PlayerID:   playerID,
		ChampionID: championID,
	}
	if role != "" {
		ev.Data = &types.EventData{Role: role}
	}
	c.bus.Publish(matchID, ev, excludeConnID)
	return sel, nil
}

// LockSelection is the hard commitment point for one player's pick. When the
// second participant locks, the match advances to locked and the timeout is
// disarmed.
func (c *Coordinator) LockSelection(ctx context.Context, matchID, playerID int64, excludeConnID string) (*store.ChampionSelection, error) {
	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Slot(playerID); !ok {
		return nil, ErrForbidden
	}
	sel, err := c.store.LockSelection(ctx, matchID, playerID)
	if err != nil {
		return nil, err
	}
	c.log.Info("selection locked",
		zap.Int64("match_id", matchID),
		zap.Int64("player_id", playerID),
		zap.Int64("champion_id", sel.ChampionID))
	c.bus.Publish(matchID, types.Event{
		Type:       types.TypeChampionLocked,
		MatchID:    matchID,
		PlayerID:   playerID,
		ChampionID: sel.ChampionID,
	}, excludeConnID)

	if c.bothLocked(ctx, m) {
		if err := c.store.AdvanceMatch(ctx, matchID, state.InSelection, state.Locked); err == nil {
			c.cancelSelectionTimer(matchID)
			c.publishMatchUpdate(matchID, state.Locked, nil, "")
		} else if !errors.Is(err, store.ErrStateConflict) {
			c.log.Error("advance to locked", zap.Int64("match_id", matchID), zap.Error(err))
		}
	}
	return sel, nil
}

func (c *Coordinator) bothLocked(ctx context.Context, m *store.Match) bool {
	sels, err := c.store.Selections(ctx, m.ID)
	if err != nil {
		c.log.Error("read selections", zap.Int64("match_id", m.ID), zap.Error(err))
		return false
	}
	locked := map[int64]bool{}
	for _, sel := range sels {
		if sel.IsLocked {
			locked[sel.PlayerID] = true
		}
	}
	return locked[m.Player1ID] && locked[m.Player2ID]
}

// ActivateMatch is the admin transition that opens a pending match.
func (c *Coordinator) ActivateMatch(ctx context.Context, matchID int64) error {
	if err := c.store.AdvanceMatch(ctx, matchID, state.Pending, state.Active); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return state.ErrInvalidTransition
		}
		return err
	}
	c.publishMatchUpdate(matchID, state.Active, nil, "")
	return nil
}

// CompleteMatch records the result of a fully locked match. Admin-only; the
// caller's role is enforced at the HTTP boundary.
func (c *Coordinator) CompleteMatch(ctx context.Context, matchID, winnerID int64) error {
	m, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if _, ok := m.Slot(winnerID); !ok {
		return ErrInvalidWinner
	}
	if err := c.store.SetWinner(ctx, matchID, winnerID); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return state.ErrInvalidTransition
		}
		return err
	}
	c.cancelSelectionTimer(matchID)
	c.log.Info("match completed",
		zap.Int64("match_id", matchID),
		zap.Int64("winner_id", winnerID))
	c.publishMatchUpdate(matchID, state.Completed, &winnerID, "")
	return nil
}

// CancelMatch aborts any non-terminal match. Admin-only.
func (c *Coordinator) CancelMatch(ctx context.Context, matchID int64) error {
	if err := c.store.CancelMatch(ctx, matchID); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return state.ErrInvalidTransition
		}
		return err
	}
	c.cancelSelectionTimer(matchID)
	c.publishMatchUpdate(matchID, state.Cancelled, nil, "cancelled_by_admin")
	return nil
}

// Shutdown disarms every outstanding selection timer.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Coordinator) publishMatchUpdate(matchID int64, st state.State, winnerID *int64, reason string) {
	data := &types.EventData{State: string(st), Reason: reason}
	if winnerID != nil {
		data.WinnerID = *winnerID
	}
	c.bus.Publish(matchID, types.Event{
		Type:    types.TypeMatchUpdate,
		MatchID: matchID,
		Data:    data,
	}, "")
}
