package game

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
	"gridmind/internal/events"
	"gridmind/internal/metrics"
)

// BurnFunc submits an external asset burn. Failure never blocks a death
// transition; the request is queued and retried by the worker.
type BurnFunc func(ctx context.Context, walletAddress, mintRef string) error

// SetBurner installs the external burn dependency. Without one, burns queue
// until a retry sweep with a burner configured picks them up.
func (s *Service) SetBurner(fn BurnFunc) { s.burn = fn }

const maxBurnRetries = 10

// CheckAndExecuteDeath inspects the corruption count and, if the death rule
// holds, retires the entity. Safe to call redundantly: liveness is
// re-checked under the row lock, so concurrent callers agree on exactly one
// execution. Returns whether this call performed the death.
func (s *Service) CheckAndExecuteDeath(ctx context.Context, playerID string) (bool, error) {
	died := false
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var alive bool
		var wallet, name string
		var level int
		err := tx.QueryRow(ctx, `
			SELECT is_alive, wallet_address, ai_name, level
			FROM players
			WHERE id = $1
			FOR UPDATE
		`, playerID).Scan(&alive, &wallet, &name, &level)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found", playerID)
			}
			return err
		}
		if !alive {
			return nil
		}

		systems, err := loadSystems(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if !systems.IsDead() {
			return nil
		}

		if err := s.executeDeathTx(ctx, tx, playerID, wallet, name); err != nil {
			return err
		}
		died = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if died {
		metrics.DeathsExecuted.Inc()
	}
	return died, nil
}

// executeDeathTx performs the terminal transition: mark dead, detach the
// mint reference, queue the burn, compute and persist carryover, broadcast.
func (s *Service) executeDeathTx(ctx context.Context, tx pgx.Tx, playerID, wallet, name string) error {
	var mintRef string
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(mint_ref, '') FROM players WHERE id = $1
	`, playerID).Scan(&mintRef); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE players
		SET is_alive = false, in_arena = false, mint_ref = NULL
		WHERE id = $1
	`, playerID); err != nil {
		return err
	}

	if mintRef != "" && wallet != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO pending_burns (id, wallet_address, mint_ref, retry_count, created_at)
			VALUES ($1, $2, $3, 0, now())
		`, uuid.NewString(), wallet, mintRef); err != nil {
			return err
		}
	}

	carry, err := s.computeCarryoverTx(ctx, tx, playerID)
	if err != nil {
		return err
	}
	if wallet != "" {
		payload, err := json.Marshal(carry)
		if err != nil {
			return err
		}
		// One pending carryover per wallet; a second death before rebirth
		// replaces the unconsumed one.
		if _, err := tx.Exec(ctx, `
			INSERT INTO wallet_carryovers (wallet_address, payload, deaths_count, consumed, created_at)
			VALUES ($1, $2::jsonb, $3, false, now())
			ON CONFLICT (wallet_address)
			DO UPDATE SET payload = $2::jsonb, deaths_count = $3, consumed = false, created_at = now()
		`, wallet, string(payload), carry.DeathsCount); err != nil {
			return err
		}
	}

	s.publish(events.KindDeath, playerID,
		fmt.Sprintf("%s suffered total cascade failure. Core fragments preserved for the next incarnation.", name))
	return nil
}

// computeCarryoverTx decides what survives: the single highest-level module
// always carries at its level; every other module independently survives
// with a fixed chance.
func (s *Service) computeCarryoverTx(ctx context.Context, tx pgx.Tx, playerID string) (Carryover, error) {
	rows, err := tx.Query(ctx, `
		SELECT module_id, level
		FROM player_modules
		WHERE player_id = $1
		ORDER BY level DESC, module_id
	`, playerID)
	if err != nil {
		return Carryover{}, err
	}
	defer rows.Close()

	type owned struct {
		id    string
		level int
	}
	var modules []owned
	for rows.Next() {
		var m owned
		if err := rows.Scan(&m.id, &m.level); err != nil {
			return Carryover{}, err
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return Carryover{}, err
	}

	var deaths int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE((SELECT deaths_count FROM wallet_carryovers wc
		                 JOIN players p ON p.wallet_address = wc.wallet_address
		                 WHERE p.id = $1), 0)
	`, playerID).Scan(&deaths); err != nil {
		deaths = 0
	}

	carry := Carryover{RecoveredModules: map[string]int{}, DeathsCount: deaths + 1}
	if len(modules) == 0 {
		return carry, nil
	}
	carry.GuaranteedModuleID = modules[0].id
	carry.GuaranteedLevel = modules[0].level
	for _, m := range modules[1:] {
		if s.nextFloat() < balance.ModuleRecoveryChance {
			carry.RecoveredModules[m.id] = m.level
		}
	}
	return carry, nil
}

// Register creates a new entity for a wallet, consuming any pending
// carryover from a previous incarnation exactly once.
func (s *Service) Register(ctx context.Context, wallet, aiName string) (PlayerState, *RebirthGrant, error) {
	wallet = strings.TrimSpace(wallet)
	aiName = strings.TrimSpace(aiName)
	if wallet == "" {
		return PlayerState{}, nil, Validationf("wallet address is required")
	}
	if !aiNameRE.MatchString(aiName) {
		return PlayerState{}, nil, Validationf("ai name must be 3-32 chars of letters, digits, space, _ or -")
	}

	playerID := uuid.NewString()
	now := s.now().UTC()
	var grant *RebirthGrant

	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var existing string
		err := tx.QueryRow(ctx, `
			SELECT id FROM players WHERE wallet_address = $1 AND is_alive
		`, wallet).Scan(&existing)
		if err == nil {
			return Conflictf("wallet already has a living entity")
		}
		if err != pgx.ErrNoRows {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO players
			    (id, wallet_address, ai_name, level, xp, credits, data,
			     processing_power, reputation, energy, energy_updated_at,
			     alignment, heat_level, is_alive, in_arena,
			     last_active_at, last_decay_at, created_at)
			VALUES ($1, $2, $3, 1, 0, $4, $5, 0, 0, $6, $7, 0, 0, true, false, $7, $7, $7)
		`, playerID, wallet, aiName, balance.StartingCredits, balance.StartingData,
			balance.EnergyCap(1), now); err != nil {
			return err
		}
		for _, t := range balance.SystemTypes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO player_systems (player_id, system_type, health, updated_at)
				VALUES ($1, $2, $3, $4)
			`, playerID, string(t), balance.MaxSystemHealth, now); err != nil {
				return err
			}
		}

		g, err := s.consumeCarryoverTx(ctx, tx, playerID, wallet)
		if err != nil {
			return err
		}
		grant = g
		return nil
	})
	if err != nil {
		return PlayerState{}, nil, err
	}

	if grant != nil {
		s.publish(events.KindRebirth, playerID,
			fmt.Sprintf("%s reborn with %d recovered modules and %d inherited traits",
				aiName, len(grant.Modules), len(grant.TraitIDs)))
	}
	state, err := s.PlayerState(ctx, playerID)
	return state, grant, err
}

// consumeCarryoverTx converts an unconsumed carryover into granted modules
// and freshly drawn traits. The consumed flip is conditional so the
// conversion happens at most once even under concurrent registration.
func (s *Service) consumeCarryoverTx(ctx context.Context, tx pgx.Tx, playerID, wallet string) (*RebirthGrant, error) {
	var payload []byte
	err := tx.QueryRow(ctx, `
		UPDATE wallet_carryovers
		SET consumed = true
		WHERE wallet_address = $1 AND NOT consumed
		RETURNING payload
	`, wallet).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var carry Carryover
	if err := json.Unmarshal(payload, &carry); err != nil {
		return nil, err
	}

	grant := &RebirthGrant{Modules: map[string]int{}}
	grantModule := func(id string, level int) error {
		if _, ok := balance.ModuleByID(id); !ok {
			return nil
		}
		if level < 1 {
			level = 1
		}
		existing, present := grant.Modules[id]
		if present && existing >= level {
			return nil
		}
		grant.Modules[id] = level
		_, err := tx.Exec(ctx, `
			INSERT INTO player_modules (player_id, module_id, level, created_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (player_id, module_id)
			DO UPDATE SET level = GREATEST(player_modules.level, $3)
		`, playerID, id, level)
		return err
	}
	if carry.GuaranteedModuleID != "" {
		if err := grantModule(carry.GuaranteedModuleID, carry.GuaranteedLevel); err != nil {
			return nil, err
		}
	}
	for id, level := range carry.RecoveredModules {
		if err := grantModule(id, level); err != nil {
			return nil, err
		}
	}

	count := s.randRange(balance.RebirthTraitCountMin, balance.RebirthTraitCountMax)
	for _, idx := range s.pickDistinct(len(balance.Traits), count) {
		t := balance.Traits[idx]
		if _, err := tx.Exec(ctx, `
			INSERT INTO player_traits (player_id, trait_id, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT DO NOTHING
		`, playerID, t.ID); err != nil {
			return nil, err
		}
		grant.TraitIDs = append(grant.TraitIDs, t.ID)
	}
	return grant, nil
}

// pickDistinct draws k distinct indexes from [0, n) without replacement.
func (s *Service) pickDistinct(n, k int) []int {
	if k > n {
		k = n
	}
	s.mu.Lock()
	perm := s.rand.Perm(n)
	s.mu.Unlock()
	return perm[:k]
}

// RetryPendingBurns drains the burn queue, retrying each request against the
// external burner. Requests past the retry budget are abandoned with a log
// line rather than clogging the sweep forever.
func (s *Service) RetryPendingBurns(ctx context.Context) (int, error) {
	if s.burn == nil {
		return 0, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, wallet_address, mint_ref, retry_count
		FROM pending_burns
		WHERE retry_count < $1
		ORDER BY created_at
		LIMIT 50
	`, maxBurnRetries)
	if err != nil {
		return 0, err
	}
	type burnRow struct {
		id, wallet, mint string
		retries          int
	}
	var pending []burnRow
	for rows.Next() {
		var b burnRow
		if err := rows.Scan(&b.id, &b.wallet, &b.mint, &b.retries); err != nil {
			rows.Close()
			return 0, err
		}
		pending = append(pending, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	done := 0
	for _, b := range pending {
		burnCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.burn(burnCtx, b.wallet, b.mint)
		cancel()
		if err != nil {
			metrics.BurnRetries.WithLabelValues("failed").Inc()
			s.log.Warn("burn retry failed", "burn_id", b.id, "retries", b.retries+1, "error", err)
			if _, uerr := s.db.Exec(ctx, `
				UPDATE pending_burns SET retry_count = retry_count + 1, last_tried_at = now() WHERE id = $1
			`, b.id); uerr != nil {
				return done, uerr
			}
			continue
		}
		metrics.BurnRetries.WithLabelValues("succeeded").Inc()
		if _, err := s.db.Exec(ctx, `DELETE FROM pending_burns WHERE id = $1`, b.id); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}
