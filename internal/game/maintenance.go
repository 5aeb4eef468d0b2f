package game

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
	"gridmind/internal/metrics"
)

func guardianKey(playerID string) string { return "guardian:" + playerID }

func repairCooldownKey(playerID string, system balance.SystemType) string {
	return fmt.Sprintf("repair_cd:%s:%s", playerID, system)
}

// ScanReport is the diagnostic view returned by a full scan.
type ScanReport struct {
	Systems        []SystemState `json:"systems"`
	CorruptedCount int           `json:"corrupted_count"`
	CascadeRisk    bool          `json:"cascade_risk"`
	GuardianActive bool          `json:"guardian_active"`
	Energy         int           `json:"energy"`
}

// FullScan charges scan energy and returns the current subsystem picture.
func (s *Service) FullScan(ctx context.Context, playerID string) (ScanReport, error) {
	var report ScanReport
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := lockPlayerRow(ctx, tx, playerID); err != nil {
			return err
		}
		world, err := s.TodayEffects(ctx)
		if err != nil {
			world = balance.NeutralEffects()
		}
		cost := int(math.Round(balance.EnergyCostScan * world.EnergyCost))
		remaining, err := s.debitEnergyTx(ctx, tx, playerID, cost)
		if err != nil {
			return err
		}
		systems, err := loadSystems(ctx, tx, playerID)
		if err != nil {
			return err
		}
		report = ScanReport{
			Systems:        systems.States(),
			CorruptedCount: systems.CorruptedCount(),
			Energy:         remaining,
		}
		for _, st := range report.Systems {
			if st.Status == balance.StatusCritical {
				report.CascadeRisk = true
			}
		}
		return nil
	})
	if err != nil {
		return ScanReport{}, err
	}
	_, active, _ := s.cache.Get(ctx, guardianKey(playerID))
	report.GuardianActive = active
	return report, nil
}

// RepairResult reports one completed repair.
type RepairResult struct {
	System      balance.SystemType   `json:"system"`
	Restored    int                  `json:"restored"`
	Health      int                  `json:"health"`
	Status      balance.SystemStatus `json:"status"`
	CreditsPaid int                  `json:"credits_paid"`
}

// RepairSystem restores one subsystem. Cost scales with missing health and
// player level; a short per-system cooldown stops repair spam. The cooldown
// is checked after the row lock and armed only once the repair commits, so
// a rejected or rolled-back attempt never burns it.
func (s *Service) RepairSystem(ctx context.Context, playerID string, system balance.SystemType) (RepairResult, error) {
	if !validSystemType(system) {
		return RepairResult{}, Validationf("unknown subsystem %q", system)
	}
	var out RepairResult
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var level, credits int
		err := tx.QueryRow(ctx, `
			SELECT level, credits
			FROM players
			WHERE id = $1 AND is_alive
			FOR UPDATE
		`, playerID).Scan(&level, &credits)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found or not alive", playerID)
			}
			return err
		}

		if _, held, _ := s.cache.Get(ctx, repairCooldownKey(playerID, system)); held {
			return Conflictf("repair for %s is on cooldown", system)
		}

		var health int
		err = tx.QueryRow(ctx, `
			SELECT health
			FROM player_systems
			WHERE player_id = $1 AND system_type = $2
			FOR UPDATE
		`, playerID, string(system)).Scan(&health)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("subsystem %s not found", system)
			}
			return err
		}
		if health >= balance.MaxSystemHealth {
			return NotEligiblef("%s is already at full health", system)
		}

		world, err := s.TodayEffects(ctx)
		if err != nil {
			world = balance.NeutralEffects()
		}
		cost := int(math.Round(float64(balance.RepairCost(health, level)) * world.RepairCost))
		if credits < cost {
			return Insufficientf("repair costs %d credits, have %d", cost, credits)
		}
		energyCost := int(math.Round(balance.RepairEnergyCost * world.EnergyCost))
		if _, err := s.debitEnergyTx(ctx, tx, playerID, energyCost); err != nil {
			return err
		}

		restored := health + balance.RepairHealthAmount
		if restored > balance.MaxSystemHealth {
			restored = balance.MaxSystemHealth
		}
		if _, err := tx.Exec(ctx, `
			UPDATE player_systems
			SET health = $1
			WHERE player_id = $2 AND system_type = $3
		`, restored, playerID, string(system)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE players
			SET credits = credits - $1
			WHERE id = $2
		`, cost, playerID); err != nil {
			return err
		}

		out = RepairResult{
			System:      system,
			Restored:    restored - health,
			Health:      restored,
			Status:      balance.StatusOf(restored),
			CreditsPaid: cost,
		}
		return nil
	})
	if err != nil {
		return RepairResult{}, err
	}
	if cerr := s.cache.Set(ctx, repairCooldownKey(playerID, system), "1",
		balance.RepairCooldownSeconds*time.Second); cerr != nil {
		s.log.Warn("repair cooldown set failed", "player_id", playerID, "error", cerr)
	}
	return out, nil
}

// DeployGuardian halves ambient decay for a fixed window. The cache key is
// both the flag and the timer.
func (s *Service) DeployGuardian(ctx context.Context, playerID string, duration time.Duration) error {
	if duration <= 0 || duration > 12*time.Hour {
		return Validationf("guardian duration must be between 0 and 12h")
	}
	ok, err := s.cache.SetNX(ctx, guardianKey(playerID), "1", duration)
	if err != nil {
		return err
	}
	if !ok {
		return Conflictf("a guardian process is already running")
	}
	return nil
}

func validSystemType(t balance.SystemType) bool {
	for _, st := range balance.SystemTypes {
		if st == t {
			return true
		}
	}
	return false
}

func lockPlayerRow(ctx context.Context, tx pgx.Tx, playerID string) error {
	var id string
	err := tx.QueryRow(ctx, `
		SELECT id FROM players WHERE id = $1 FOR UPDATE
	`, playerID).Scan(&id)
	if err == pgx.ErrNoRows {
		return NotFoundf("player %s not found", playerID)
	}
	return err
}

func persistSystemsTx(ctx context.Context, tx pgx.Tx, playerID string, systems SystemSet) error {
	for _, t := range balance.SystemTypes {
		if _, err := tx.Exec(ctx, `
			UPDATE player_systems
			SET health = $1
			WHERE player_id = $2 AND system_type = $3
		`, systems[t], playerID, string(t)); err != nil {
			return err
		}
	}
	return nil
}

// SweepSystems runs one decay-and-cascade tick across every living entity.
// Decay is computed from each entity's checkpoint so missed ticks never lose
// or double-count time. Returns how many entities died this sweep.
func (s *Service) SweepSystems(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM players WHERE is_alive ORDER BY id
	`)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	world, err := s.TodayEffects(ctx)
	if err != nil {
		world = balance.NeutralEffects()
	}

	deaths := 0
	for _, id := range ids {
		if err := s.sweepOne(ctx, id, world); err != nil {
			s.log.Error("system sweep failed", "player_id", id, "error", err)
			continue
		}
		died, err := s.CheckAndExecuteDeath(ctx, id)
		if err != nil {
			s.log.Error("death check failed", "player_id", id, "error", err)
			continue
		}
		if died {
			deaths++
		}
	}
	return deaths, nil
}

func (s *Service) sweepOne(ctx context.Context, playerID string, world balance.Effects) error {
	mitigation := 1.0
	if _, active, _ := s.cache.Get(ctx, guardianKey(playerID)); active {
		mitigation = balance.GuardianDecayMitigate
	}

	return s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var lastDecay time.Time
		err := tx.QueryRow(ctx, `
			SELECT last_decay_at
			FROM players
			WHERE id = $1 AND is_alive
			FOR UPDATE
		`, playerID).Scan(&lastDecay)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil
			}
			return err
		}

		now := s.now().UTC()
		systems, err := loadSystems(ctx, tx, playerID)
		if err != nil {
			return err
		}

		systems.ApplyDecay(now.Sub(lastDecay).Hours()*world.DegradationRate, mitigation)
		cascaded := systems.ApplyCascade()
		if cascaded > 0 {
			metrics.CascadeDamage.Add(float64(cascaded))
		}

		if err := persistSystemsTx(ctx, tx, playerID, systems); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE players SET last_decay_at = $1 WHERE id = $2
		`, now, playerID)
		return err
	})
}
