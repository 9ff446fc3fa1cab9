package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuevacelis/1vs1core-sub000/internal/state"
)

// MemoryStore keeps everything in process. It mirrors the Postgres store's
// conditional-update semantics under one mutex, which makes it the test
// double for the coordinator and a usable dev mode when DATABASE_URL is
// unset.
type MemoryStore struct {
	mu         sync.Mutex
	matches    map[int64]Match
	selections map[int64]ChampionSelection
	nextMatch  int64
	nextSel    int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		matches:    make(map[int64]Match),
		selections: make(map[int64]ChampionSelection),
	}
}

func (s *MemoryStore) CreateMatch(_ context.Context, m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		s.nextMatch++
		m.ID = s.nextMatch
	} else if m.ID > s.nextMatch {
		s.nextMatch = m.ID
	}
	if m.State == "" {
		m.State = state.Pending
	}
	s.matches[m.ID] = *m
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id int64) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) ListMatches(_ context.Context, tournamentID int64) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Match
	for _, m := range s.matches {
		if tournamentID > 0 && m.TournamentID != tournamentID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AdvanceMatch(_ context.Context, id int64, from, to state.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return ErrNotFound
	}
	if m.State != from {
		return ErrStateConflict
	}
	m.State = to
	s.matches[id] = m
	return nil
}

func (s *MemoryStore) SetWinner(_ context.Context, id, winnerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return ErrNotFound
	}
	if m.State != state.Locked {
		return ErrStateConflict
	}
	m.State = state.Completed
	m.WinnerID = &winnerID
	s.matches[id] = m
	return nil
}

func (s *MemoryStore) CancelMatch(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return ErrNotFound
	}
	if m.State.Terminal() {
		return ErrStateConflict
	}
	m.State = state.Cancelled
	s.matches[id] = m
	return nil
}

func (s *MemoryStore) UpsertSelection(_ context.Context, matchID, playerID, championID int64, role string) (*ChampionSelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sel := range s.selections {
		if sel.MatchID != matchID || sel.PlayerID != playerID {
			continue
		}
		if sel.IsLocked {
			return nil, ErrSelectionLocked
		}
		sel.ChampionID = championID
		sel.Role = role
		sel.SelectionDate = time.Now().UTC()
		s.selections[id] = sel
		return &sel, nil
	}
	s.nextSel++
	sel := ChampionSelection{
		ID:            s.nextSel,
		MatchID:       matchID,
		PlayerID:      playerID,
		ChampionID:    championID,
		Role:          role,
		SelectionDate: time.Now().UTC(),
	}
	s.selections[sel.ID] = sel
	return &sel, nil
}

func (s *MemoryStore) LockSelection(_ context.Context, matchID, playerID int64) (*ChampionSelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sel := range s.selections {
		if sel.MatchID != matchID || sel.PlayerID != playerID {
			continue
		}
		if sel.IsLocked {
			return nil, ErrSelectionLocked
		}
		now := time.Now().UTC()
		sel.IsLocked = true
		sel.LockDate = &now
		s.selections[id] = sel
		return &sel, nil
	}
	return nil, ErrNoSelection
}

func (s *MemoryStore) Selections(_ context.Context, matchID int64) ([]ChampionSelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ChampionSelection
	for _, sel := range s.selections {
		if sel.MatchID == matchID {
			out = append(out, sel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (s *MemoryStore) ForceLockAll(_ context.Context, matchID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for id, sel := range s.selections {
		if sel.MatchID != matchID || sel.IsLocked {
			continue
		}
		sel.IsLocked = true
		sel.LockDate = &now
		s.selections[id] = sel
		n++
	}
	return n, nil
}
