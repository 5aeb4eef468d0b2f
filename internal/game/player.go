package game

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
)

// PlayerState returns the current entity record. Reading state materializes
// any accrued passive income first, and energy is always computed from its
// checkpoint, never trusted raw.
func (s *Service) PlayerState(ctx context.Context, playerID string) (PlayerState, error) {
	if _, err := s.MaterializePassiveIncome(ctx, playerID); err != nil {
		// Dead entities stop accruing but their record stays readable.
		if KindOf(err) != KindNotEligible {
			return PlayerState{}, err
		}
	}

	var p PlayerState
	var storedEnergy int
	var energyCheckpoint time.Time
	err := s.db.QueryRow(ctx, `
		SELECT id, wallet_address, ai_name, level, xp, credits, data,
		       processing_power, reputation, energy, energy_updated_at,
		       alignment, heat_level, is_alive, in_arena, last_active_at
		FROM players
		WHERE id = $1
	`, playerID).Scan(&p.ID, &p.WalletAddress, &p.AIName, &p.Level, &p.XP,
		&p.Credits, &p.Data, &p.ProcessingPower, &p.Reputation,
		&storedEnergy, &energyCheckpoint, &p.Alignment, &p.HeatLevel,
		&p.IsAlive, &p.InArena, &p.LastActiveAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return PlayerState{}, NotFoundf("player %s not found", playerID)
		}
		return PlayerState{}, err
	}
	p.EnergyCap = balance.EnergyCap(p.Level)
	p.Energy = computeEnergy(storedEnergy, energyCheckpoint, s.now().UTC(), p.Level)
	return p, nil
}

// OwnedModuleView is one inventory entry with its catalog definition folded
// in.
type OwnedModuleView struct {
	ModuleID string                 `json:"module_id"`
	Name     string                 `json:"name"`
	Category balance.ModuleCategory `json:"category"`
	Tier     balance.ModuleTier     `json:"tier"`
	Level    int                    `json:"level"`
	Mutation string                 `json:"mutation,omitempty"`
}

func (s *Service) PlayerModules(ctx context.Context, playerID string) ([]OwnedModuleView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT module_id, level, COALESCE(mutation, '')
		FROM player_modules
		WHERE player_id = $1
		ORDER BY level DESC, module_id
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]OwnedModuleView, 0)
	for rows.Next() {
		var v OwnedModuleView
		if err := rows.Scan(&v.ModuleID, &v.Level, &v.Mutation); err != nil {
			return nil, err
		}
		if def, ok := balance.ModuleByID(v.ModuleID); ok {
			v.Name = def.Name
			v.Category = def.Category
			v.Tier = def.Tier
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Service) PlayerTraits(ctx context.Context, playerID string) ([]balance.Trait, error) {
	return loadTraits(ctx, s.db, playerID)
}

// CombatLogEntry is one row of the immutable combat history.
type CombatLogEntry struct {
	AttackerID string    `json:"attacker_id"`
	TargetID   string    `json:"target_id"`
	Result     string    `json:"result"`
	WinChance  float64   `json:"win_chance"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Service) CombatHistory(ctx context.Context, playerID string, limit int) ([]CombatLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	rows, err := s.db.Query(ctx, `
		SELECT attacker_id, target_id, result, win_chance, created_at
		FROM combat_logs
		WHERE attacker_id = $1 OR target_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CombatLogEntry, 0, limit)
	for rows.Next() {
		var e CombatLogEntry
		if err := rows.Scan(&e.AttackerID, &e.TargetID, &e.Result, &e.WinChance, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
