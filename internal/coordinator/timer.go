package coordinator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cuevacelis/1vs1core-sub000/internal/state"
	"github.com/cuevacelis/1vs1core-sub000/internal/store"
)

// The selection phase is bounded server-side so observers converge no matter
// what each client's local countdown believes. The timer is armed when a
// match enters in_selection and disarmed when both players lock, or when the
// match completes or is cancelled.

func (c *Coordinator) armSelectionTimer(matchID int64) {
	if c.selectionTimeout <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.timers[matchID]; ok {
		old.Stop()
	}
	c.timers[matchID] = time.AfterFunc(c.selectionTimeout, func() {
		c.selectionExpired(matchID)
	})
}

func (c *Coordinator) cancelSelectionTimer(matchID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[matchID]; ok {
		t.Stop()
		delete(c.timers, matchID)
	}
}

// selectionExpired force-locks whatever picks exist and closes the phase.
// The conditional update is the stale-fire guard: if the match already left
// in_selection, the expiry loses and does nothing.
func (c *Coordinator) selectionExpired(matchID int64) {
	ctx := context.Background()
	c.mu.Lock()
	delete(c.timers, matchID)
	c.mu.Unlock()

	if err := c.store.AdvanceMatch(ctx, matchID, state.InSelection, state.Locked); err != nil {
		if !errors.Is(err, store.ErrStateConflict) && !errors.Is(err, store.ErrNotFound) {
			c.log.Error("selection timeout advance", zap.Int64("match_id", matchID), zap.Error(err))
		}
		return
	}
	n, err := c.store.ForceLockAll(ctx, matchID)
	if err != nil {
		c.log.Error("selection timeout force lock", zap.Int64("match_id", matchID), zap.Error(err))
	}
	c.log.Info("selection phase timed out",
		zap.Int64("match_id", matchID),
		zap.Int64("force_locked", n))
	c.publishMatchUpdate(matchID, state.Locked, nil, "selection_timeout")
}
