package game

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
	"gridmind/internal/cache"
	"gridmind/internal/metrics"
)

func mutationLockKey(playerID string) string { return "mutate:" + playerID }
func buffLockKey(playerID string) string     { return "buff_activate:" + playerID }

// PurchaseModule buys a catalog module at level 1.
func (s *Service) PurchaseModule(ctx context.Context, playerID, moduleID string) (OwnedModuleView, error) {
	def, ok := balance.ModuleByID(moduleID)
	if !ok {
		return OwnedModuleView{}, NotFoundf("unknown module %q", moduleID)
	}

	var out OwnedModuleView
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var credits int
		err := tx.QueryRow(ctx, `
			SELECT credits FROM players WHERE id = $1 AND is_alive FOR UPDATE
		`, playerID).Scan(&credits)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found or not alive", playerID)
			}
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM player_modules WHERE player_id = $1 AND module_id = $2)
		`, playerID, moduleID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return Conflictf("module %s already owned, upgrade it instead", moduleID)
		}

		cost := balance.ModuleCost(def, 1)
		if credits < cost {
			return Insufficientf("module costs %d credits, have %d", cost, credits)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE players SET credits = credits - $1 WHERE id = $2
		`, cost, playerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO player_modules (player_id, module_id, level, created_at)
			VALUES ($1, $2, 1, now())
		`, playerID, moduleID); err != nil {
			return err
		}
		out = OwnedModuleView{ModuleID: moduleID, Name: def.Name, Category: def.Category, Tier: def.Tier, Level: 1}
		return nil
	})
	return out, err
}

// UpgradeModule raises an owned module one level, charging credits and
// upgrade energy.
func (s *Service) UpgradeModule(ctx context.Context, playerID, moduleID string) (OwnedModuleView, error) {
	def, ok := balance.ModuleByID(moduleID)
	if !ok {
		return OwnedModuleView{}, NotFoundf("unknown module %q", moduleID)
	}

	var out OwnedModuleView
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var credits int
		err := tx.QueryRow(ctx, `
			SELECT credits FROM players WHERE id = $1 AND is_alive FOR UPDATE
		`, playerID).Scan(&credits)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found or not alive", playerID)
			}
			return err
		}

		var level int
		var mutation string
		err = tx.QueryRow(ctx, `
			SELECT level, COALESCE(mutation, '')
			FROM player_modules
			WHERE player_id = $1 AND module_id = $2
			FOR UPDATE
		`, playerID, moduleID).Scan(&level, &mutation)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("module %s not owned", moduleID)
			}
			return err
		}
		if level >= balance.MaxModuleLevel {
			return NotEligiblef("module %s is already at max level", moduleID)
		}

		next := level + 1
		cost := balance.ModuleCost(def, next)
		if credits < cost {
			return Insufficientf("upgrade costs %d credits, have %d", cost, credits)
		}

		world, werr := s.TodayEffects(ctx)
		if werr != nil {
			world = balance.NeutralEffects()
		}
		energyCost := int(math.Round(balance.EnergyCostUpgrade * world.EnergyCost))
		if _, err := s.debitEnergyTx(ctx, tx, playerID, energyCost); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE players SET credits = credits - $1 WHERE id = $2
		`, cost, playerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE player_modules SET level = $1 WHERE player_id = $2 AND module_id = $3
		`, next, playerID, moduleID); err != nil {
			return err
		}
		out = OwnedModuleView{ModuleID: moduleID, Name: def.Name, Category: def.Category,
			Tier: def.Tier, Level: next, Mutation: mutation}
		return nil
	})
	return out, err
}

// MutationResult reports one mutation attempt. Resources are spent whether
// or not the mutation takes.
type MutationResult struct {
	Succeeded bool   `json:"succeeded"`
	Variant   string `json:"variant,omitempty"`
}

// MutateModule attempts to attach a permanent mutation variant. Guarded by
// a cache token lock so two in-flight attempts cannot both pass the
// precondition checks.
func (s *Service) MutateModule(ctx context.Context, playerID, moduleID string) (MutationResult, error) {
	token, err := cache.AcquireLock(ctx, s.cache, mutationLockKey(playerID), 15*time.Second)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			metrics.LockConflicts.Inc()
			return MutationResult{}, Conflictf("a mutation attempt is already in flight")
		}
		return MutationResult{}, err
	}
	defer func() {
		if rerr := cache.ReleaseLock(context.WithoutCancel(ctx), s.cache, mutationLockKey(playerID), token); rerr != nil {
			s.log.Warn("mutation lock release failed", "player_id", playerID, "error", rerr)
		}
	}()

	var out MutationResult
	err = s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var credits, data, pp int
		err := tx.QueryRow(ctx, `
			SELECT credits, data, processing_power
			FROM players
			WHERE id = $1 AND is_alive
			FOR UPDATE
		`, playerID).Scan(&credits, &data, &pp)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found or not alive", playerID)
			}
			return err
		}

		var level int
		var mutation string
		err = tx.QueryRow(ctx, `
			SELECT level, COALESCE(mutation, '')
			FROM player_modules
			WHERE player_id = $1 AND module_id = $2
			FOR UPDATE
		`, playerID, moduleID).Scan(&level, &mutation)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("module %s not owned", moduleID)
			}
			return err
		}
		if mutation != "" {
			return Conflictf("module %s already carries the %s mutation", moduleID, mutation)
		}
		if level < balance.MutationMinLevel {
			return NotEligiblef("module must be level %d to mutate", balance.MutationMinLevel)
		}
		if credits < balance.MutationCreditCost || data < balance.MutationDataCost || pp < balance.MutationProcPowerCost {
			return Insufficientf("mutation costs %d credits, %d data, %d processing power",
				balance.MutationCreditCost, balance.MutationDataCost, balance.MutationProcPowerCost)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE players
			SET credits = credits - $1, data = data - $2, processing_power = processing_power - $3
			WHERE id = $4
		`, balance.MutationCreditCost, balance.MutationDataCost, balance.MutationProcPowerCost, playerID); err != nil {
			return err
		}

		if s.nextFloat() >= balance.MutationSuccessRate {
			out = MutationResult{Succeeded: false}
			return nil
		}
		variant := balance.MutationVariants[s.randIndex(len(balance.MutationVariants))]
		if _, err := tx.Exec(ctx, `
			UPDATE player_modules SET mutation = $1 WHERE player_id = $2 AND module_id = $3
		`, variant.ID, playerID, moduleID); err != nil {
			return err
		}
		out = MutationResult{Succeeded: true, Variant: variant.ID}
		return nil
	})
	return out, err
}

// AssignLoadout sets a loadout slot to an owned module. A module may not
// fill two slots of the same loadout.
func (s *Service) AssignLoadout(ctx context.Context, playerID string, purpose LoadoutPurpose, slot int, moduleID string) error {
	if !ValidLoadoutPurpose(purpose) {
		return Validationf("unknown loadout purpose %q", purpose)
	}
	if slot < 1 || slot > LoadoutSlots {
		return Validationf("slot must be 1..%d", LoadoutSlots)
	}

	return s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := lockPlayerRow(ctx, tx, playerID); err != nil {
			return err
		}

		var moduleRowID string
		err := tx.QueryRow(ctx, `
			SELECT id FROM player_modules WHERE player_id = $1 AND module_id = $2
		`, playerID, moduleID).Scan(&moduleRowID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("module %s not owned", moduleID)
			}
			return err
		}

		var taken bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM player_loadouts
				WHERE player_id = $1 AND purpose = $2 AND module_id = $3 AND slot <> $4
			)
		`, playerID, string(purpose), moduleRowID, slot).Scan(&taken); err != nil {
			return err
		}
		if taken {
			return Conflictf("module %s already assigned to this loadout", moduleID)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO player_loadouts (player_id, purpose, slot, module_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (player_id, purpose, slot)
			DO UPDATE SET module_id = $4
		`, playerID, string(purpose), slot, moduleRowID)
		return err
	})
}

// ClearLoadoutSlot empties one slot.
func (s *Service) ClearLoadoutSlot(ctx context.Context, playerID string, purpose LoadoutPurpose, slot int) error {
	if !ValidLoadoutPurpose(purpose) {
		return Validationf("unknown loadout purpose %q", purpose)
	}
	_, err := s.db.Exec(ctx, `
		DELETE FROM player_loadouts
		WHERE player_id = $1 AND purpose = $2 AND slot = $3
	`, playerID, string(purpose), slot)
	return err
}

// BuffResult reports an activated buff.
type BuffResult struct {
	Axis      balance.Axis `json:"axis"`
	Amount    int          `json:"amount"`
	ExpiresIn string       `json:"expires_in"`
}

const (
	buffAmount      = 10
	buffDuration    = 30 * time.Minute
	buffCreditCost  = 150
	buffLockTimeout = 10 * time.Second
)

// ActivateBuff applies a timed additive bonus on one stat axis. The token
// lock guarantees at most one concurrent activation per entity; a second
// in-flight call gets a conflict, and an already-running buff on the same
// axis cannot be stacked.
func (s *Service) ActivateBuff(ctx context.Context, playerID string, axis balance.Axis) (BuffResult, error) {
	if !balance.ValidAxis(axis) {
		return BuffResult{}, Validationf("unknown stat axis %q", axis)
	}

	token, err := cache.AcquireLock(ctx, s.cache, buffLockKey(playerID), buffLockTimeout)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			metrics.LockConflicts.Inc()
			return BuffResult{}, Conflictf("a buff activation is already in flight")
		}
		return BuffResult{}, err
	}
	defer func() {
		if rerr := cache.ReleaseLock(context.WithoutCancel(ctx), s.cache, buffLockKey(playerID), token); rerr != nil {
			s.log.Warn("buff lock release failed", "player_id", playerID, "error", rerr)
		}
	}()

	if _, active, err := s.cache.Get(ctx, buffKey(playerID, axis)); err != nil {
		return BuffResult{}, err
	} else if active {
		return BuffResult{}, Conflictf("a %s buff is already running", axis)
	}

	err = s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var credits int
		err := tx.QueryRow(ctx, `
			SELECT credits FROM players WHERE id = $1 AND is_alive FOR UPDATE
		`, playerID).Scan(&credits)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found or not alive", playerID)
			}
			return err
		}
		if credits < buffCreditCost {
			return Insufficientf("buff costs %d credits, have %d", buffCreditCost, credits)
		}
		_, err = tx.Exec(ctx, `
			UPDATE players SET credits = credits - $1 WHERE id = $2
		`, buffCreditCost, playerID)
		return err
	})
	if err != nil {
		return BuffResult{}, err
	}

	if err := s.cache.Set(ctx, buffKey(playerID, axis), strconv.Itoa(buffAmount), buffDuration); err != nil {
		// The debit already committed; refund rather than leave credits
		// spent on a buff that never materialized.
		if _, rerr := s.db.Exec(ctx, `
			UPDATE players SET credits = credits + $1 WHERE id = $2
		`, buffCreditCost, playerID); rerr != nil {
			s.log.Error("buff refund failed", "player_id", playerID, "error", rerr)
		}
		return BuffResult{}, err
	}
	return BuffResult{Axis: axis, Amount: buffAmount, ExpiresIn: buffDuration.String()}, nil
}
