package game

import (
	"context"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
	"gridmind/internal/metrics"
)

// computeEnergy derives the current energy value from the stored checkpoint.
// Energy is never ticked by a process; it is always computed on read.
func computeEnergy(stored int, checkpoint, now time.Time, level int) int {
	cap := balance.EnergyCap(level)
	if stored >= cap {
		return cap
	}
	hours := now.Sub(checkpoint).Hours()
	if hours <= 0 {
		return stored
	}
	regen := int(math.Floor(balance.EnergyRegenPerHour(level) * hours))
	e := stored + regen
	if e > cap {
		e = cap
	}
	return e
}

// debitEnergyTx charges an energy cost against a player row the caller has
// already locked. The checkpoint moves to now so the regen window restarts.
func (s *Service) debitEnergyTx(ctx context.Context, tx pgx.Tx, playerID string, cost int) (int, error) {
	var stored, level int
	var checkpoint time.Time
	err := tx.QueryRow(ctx, `
		SELECT energy, energy_updated_at, level
		FROM players
		WHERE id = $1
	`, playerID).Scan(&stored, &checkpoint, &level)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, NotFoundf("player %s not found", playerID)
		}
		return 0, err
	}

	now := s.now().UTC()
	current := computeEnergy(stored, checkpoint, now, level)
	if current < cost {
		return current, Insufficientf("need %d energy, have %d", cost, current)
	}
	remaining := current - cost
	_, err = tx.Exec(ctx, `
		UPDATE players
		SET energy = $1, energy_updated_at = $2
		WHERE id = $3
	`, remaining, now, playerID)
	return remaining, err
}

// passiveAccrual computes the income earned between two checkpoints. Gaps
// over a day are capped and paid at the skip-day rate; gaps under five
// minutes accrue nothing, which also keeps rapid polling from farming
// rounding errors.
func passiveAccrual(last, now time.Time, world balance.Effects) PassiveIncome {
	hours := now.Sub(last).Hours()
	if hours < balance.PassiveMinHours {
		return PassiveIncome{}
	}
	mult := 1.0
	if hours > balance.PassiveMaxHours {
		hours = balance.PassiveMaxHours
		mult = balance.PassiveSkipDayMultiplier
	}
	mult *= world.PassiveIncome
	return PassiveIncome{
		Credits: int(math.Floor(balance.PassiveCreditsPerHour * hours * mult)),
		Data:    int(math.Floor(balance.PassiveDataPerHour * hours * mult)),
	}
}

// MaterializePassiveIncome applies accrued idle income. The checkpoint
// update is conditional on the timestamp we read, so two concurrent calls
// cannot both bank the same window; the loser simply reports zero.
func (s *Service) MaterializePassiveIncome(ctx context.Context, playerID string) (PassiveIncome, error) {
	var lastActive time.Time
	var alive bool
	err := s.db.QueryRow(ctx, `
		SELECT last_active_at, is_alive
		FROM players
		WHERE id = $1
	`, playerID).Scan(&lastActive, &alive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return PassiveIncome{}, NotFoundf("player %s not found", playerID)
		}
		return PassiveIncome{}, err
	}
	if !alive {
		return PassiveIncome{}, NotEligiblef("terminated entities do not accrue income")
	}

	world, err := s.TodayEffects(ctx)
	if err != nil {
		world = balance.NeutralEffects()
	}
	now := s.now().UTC()
	income := passiveAccrual(lastActive, now, world)
	if income.Credits == 0 && income.Data == 0 {
		return PassiveIncome{}, nil
	}

	cmd, err := s.db.Exec(ctx, `
		UPDATE players
		SET credits = credits + $1,
		    data = data + $2,
		    last_active_at = $3
		WHERE id = $4 AND last_active_at = $5
	`, income.Credits, income.Data, now, playerID, lastActive)
	if err != nil {
		return PassiveIncome{}, err
	}
	if cmd.RowsAffected() == 0 {
		// Another request moved the checkpoint first.
		return PassiveIncome{}, nil
	}
	metrics.PassiveAwards.Inc()
	return income, nil
}
