package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/cuevacelis/1vs1core-sub000/internal/state"
)

// PostgresStore persists matches and selections through gorm. Conditional
// updates lean on the database's row-level guarantees, so many server
// processes can share one database without a coordination layer.
type PostgresStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Match{}, &ChampionSelection{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateMatch(ctx context.Context, m *Match) error {
	if m.State == "" {
		m.State = state.Pending
	}
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *PostgresStore) GetMatch(ctx context.Context, id int64) (*Match, error) {
	var m Match
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, tournamentID int64) ([]Match, error) {
	var out []Match
	q := s.db.WithContext(ctx).Order("round, id")
	if tournamentID > 0 {
		q = q.Where("tournament_id = ?", tournamentID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) AdvanceMatch(ctx context.Context, id int64, from, to state.State) error {
	res := s.db.WithContext(ctx).Model(&Match{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.matchMissOrConflict(ctx, id)
	}
	return nil
}

func (s *PostgresStore) SetWinner(ctx context.Context, id, winnerID int64) error {
	res := s.db.WithContext(ctx).Model(&Match{}).
		Where("id = ? AND state = ?", id, state.Locked).
		Updates(map[string]any{"state": state.Completed, "winner_id": winnerID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.matchMissOrConflict(ctx, id)
	}
	return nil
}

func (s *PostgresStore) CancelMatch(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&Match{}).
		Where("id = ? AND state NOT IN ?", id, []state.State{state.Completed, state.Cancelled}).
		Update("state", state.Cancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.matchMissOrConflict(ctx, id)
	}
	return nil
}

// matchMissOrConflict turns an affected-row count of zero into the right
// sentinel: the row is either absent or in an unexpected state.
func (s *PostgresStore) matchMissOrConflict(ctx context.Context, id int64) error {
	var m Match
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return ErrStateConflict
}

func (s *PostgresStore) UpsertSelection(ctx context.Context, matchID, playerID, championID int64, role string) (*ChampionSelection, error) {
	sel := &ChampionSelection{
		MatchID:       matchID,
		PlayerID:      playerID,
		ChampionID:    championID,
		Role:          role,
		SelectionDate: time.Now().UTC(),
	}
	// ON CONFLICT ... DO UPDATE ... WHERE is_locked = false: a locked row
	// wins every race by construction, no read-then-write window.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "match_id"}, {Name: "player_id"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "champion_selections", Name: "is_locked"}, Value: false},
		}},
		DoUpdates: clause.Assignments(map[string]any{
			"champion_id":    championID,
			"role":           role,
			"selection_date": sel.SelectionDate,
		}),
	}).Create(sel)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrSelectionLocked
	}
	return s.selection(ctx, matchID, playerID)
}

func (s *PostgresStore) LockSelection(ctx context.Context, matchID, playerID int64) (*ChampionSelection, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&ChampionSelection{}).
		Where("match_id = ? AND player_id = ? AND is_locked = ?", matchID, playerID, false).
		Updates(map[string]any{"is_locked": true, "lock_date": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.selection(ctx, matchID, playerID); errors.Is(err, ErrNoSelection) {
			return nil, ErrNoSelection
		} else if err != nil {
			return nil, err
		}
		return nil, ErrSelectionLocked
	}
	return s.selection(ctx, matchID, playerID)
}

func (s *PostgresStore) Selections(ctx context.Context, matchID int64) ([]ChampionSelection, error) {
	var out []ChampionSelection
	if err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("player_id").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ForceLockAll(ctx context.Context, matchID int64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&ChampionSelection{}).
		Where("match_id = ? AND is_locked = ?", matchID, false).
		Updates(map[string]any{"is_locked": true, "lock_date": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (s *PostgresStore) selection(ctx context.Context, matchID, playerID int64) (*ChampionSelection, error) {
	var sel ChampionSelection
	err := s.db.WithContext(ctx).
		Where("match_id = ? AND player_id = ?", matchID, playerID).
		First(&sel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSelection
		}
		return nil, err
	}
	return &sel, nil
}
