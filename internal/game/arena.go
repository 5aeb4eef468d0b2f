package game

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
	"gridmind/internal/events"
	"gridmind/internal/metrics"
)

func attacksReceivedKey(playerID, day string) string {
	return fmt.Sprintf("pvp_recv:%s:%s", playerID, day)
}

func damageReceivedKey(playerID, day string) string {
	return fmt.Sprintf("pvp_dmg:%s:%s", playerID, day)
}

func botAttacksKey(playerID, day string) string {
	return fmt.Sprintf("bot_atk:%s:%s", playerID, day)
}

// arenaOpen reports whether the PvP window is active. The window is fixed in
// UTC so it rotates fairly across regions rather than tracking local time.
func (s *Service) arenaOpen() bool {
	h := s.now().UTC().Hour()
	return h >= balance.PvPHourStart && h < balance.PvPHourEnd
}

// EnterArena flags the entity as attackable. Only valid inside the window.
func (s *Service) EnterArena(ctx context.Context, playerID string) error {
	if !s.arenaOpen() {
		return NotEligiblef("the arena is open %02d:00-%02d:00 UTC", balance.PvPHourStart, balance.PvPHourEnd)
	}
	cmd, err := s.db.Exec(ctx, `
		UPDATE players SET in_arena = true WHERE id = $1 AND is_alive
	`, playerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return NotFoundf("player %s not found or not alive", playerID)
	}
	return nil
}

// LeaveArena clears the flag. Always allowed, even outside the window.
func (s *Service) LeaveArena(ctx context.Context, playerID string) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE players SET in_arena = false WHERE id = $1
	`, playerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return NotFoundf("player %s not found", playerID)
	}
	return nil
}

// Opponents lists attackable targets: humans in the arena within the level
// window, padded with synthetic opponents when sparse. Humans always list
// first.
func (s *Service) Opponents(ctx context.Context, playerID string) ([]Opponent, error) {
	var level int
	err := s.db.QueryRow(ctx, `
		SELECT level FROM players WHERE id = $1 AND is_alive
	`, playerID).Scan(&level)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, NotFoundf("player %s not found or not alive", playerID)
		}
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, ai_name, level, reputation, alignment
		FROM players
		WHERE in_arena AND is_alive AND id <> $1
		  AND level BETWEEN $2 AND $3
		ORDER BY reputation DESC
		LIMIT $4
	`, playerID, level-balance.PvPLevelRange, level+balance.PvPLevelRange, balance.BotPoolSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var humans []Opponent
	day := s.todayKey()
	for rows.Next() {
		var o Opponent
		if err := rows.Scan(&o.ID, &o.AIName, &o.Level, &o.Reputation, &o.Alignment); err != nil {
			return nil, err
		}
		// Defenders already at their received-attack cap are not listed.
		recv, err := s.dailyCounterValue(ctx, attacksReceivedKey(o.ID, day))
		if err == nil && recv >= balance.PvPMaxAttacksReceived {
			continue
		}
		o.Playstyle = playstyleFor(o.Alignment)
		humans = append(humans, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return WithBotBackfill(humans, playerID, day, level), nil
}

func playstyleFor(alignment float64) string {
	switch {
	case alignment <= -0.4:
		return "aggressive"
	case alignment >= 0.4:
		return "defensive"
	default:
		return "opportunistic"
	}
}

// Attack resolves one engagement against a human or synthetic opponent.
func (s *Service) Attack(ctx context.Context, attackerID, targetID string) (CombatOutcome, error) {
	if !s.arenaOpen() {
		return CombatOutcome{}, NotEligiblef("the arena is open %02d:00-%02d:00 UTC", balance.PvPHourStart, balance.PvPHourEnd)
	}
	if attackerID == targetID {
		return CombatOutcome{}, Validationf("cannot attack yourself")
	}
	if IsBotID(targetID) {
		return s.attackBot(ctx, attackerID, targetID)
	}
	return s.attackHuman(ctx, attackerID, targetID)
}

func (s *Service) attackBot(ctx context.Context, attackerID, botID string) (CombatOutcome, error) {
	day := s.todayKey()

	// Counter checked here and incremented after commit, so a retried or
	// failed transaction never burns an attempt.
	used, err := s.dailyCounterValue(ctx, botAttacksKey(attackerID, day))
	if err == nil && used >= balance.BotMaxAttacksPerDay {
		return CombatOutcome{}, NotEligiblef("daily synthetic engagement limit reached")
	}

	var out CombatOutcome
	err = s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var name string
		var level int
		var alive bool
		err := tx.QueryRow(ctx, `
			SELECT ai_name, level, is_alive
			FROM players
			WHERE id = $1
			FOR UPDATE
		`, attackerID).Scan(&name, &level, &alive)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found", attackerID)
			}
			return err
		}
		if !alive {
			return NotEligiblef("terminated entities cannot fight")
		}

		bot, err := ValidateBotID(botID, attackerID, day, level)
		if err != nil {
			return err
		}

		world, werr := s.TodayEffects(ctx)
		if werr != nil {
			world = balance.NeutralEffects()
		}
		cost := int(math.Round(balance.EnergyCostPvP * world.EnergyCost))
		if _, err := s.debitEnergyTx(ctx, tx, attackerID, cost); err != nil {
			return err
		}

		bundle, err := s.resolveStats(ctx, tx, attackerID, LoadoutAttack)
		if err != nil {
			return err
		}

		out = resolveCombat(lockedRNG{s}, combatInput{
			AttackerName:     name,
			DefenderName:     bot.Name,
			AttackPower:      bundle.EffectivePower() + balance.DiversityBonusFor(bundle.DiversityCount),
			DefensePower:     bot.DefensePower,
			DefenderLevel:    bot.Level,
			RewardMultiplier: bot.RewardMultiplier,
		})
		return s.settleAttackerTx(ctx, tx, attackerID, bot.ID, bundle, out, world)
	})
	if err != nil {
		return CombatOutcome{}, err
	}
	if _, err := s.dailyCounter(ctx, botAttacksKey(attackerID, day)); err != nil {
		s.log.Warn("bot attack counter update failed", "player_id", attackerID, "error", err)
	}
	metrics.CombatsResolved.WithLabelValues(string(out.Result), "bot").Inc()

	if out.Result == ResultDefenderWin {
		if _, err := s.CheckAndExecuteDeath(ctx, attackerID); err != nil {
			s.log.Error("post-combat death check failed", "player_id", attackerID, "error", err)
		}
	}
	return out, nil
}

func (s *Service) attackHuman(ctx context.Context, attackerID, defenderID string) (CombatOutcome, error) {
	day := s.todayKey()

	// Received-attack cap, checked before any locking.
	recv, err := s.dailyCounterValue(ctx, attacksReceivedKey(defenderID, day))
	if err == nil && recv >= balance.PvPMaxAttacksReceived {
		return CombatOutcome{}, NotEligiblef("target has absorbed its daily attack quota")
	}

	// Lock both rows in id order so crossing attacks cannot deadlock.
	first, second := attackerID, defenderID
	if second < first {
		first, second = second, first
	}

	var out CombatOutcome
	var damageDealt int
	err = s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		damageDealt = 0
		for _, id := range []string{first, second} {
			if err := lockPlayerRow(ctx, tx, id); err != nil {
				return err
			}
		}

		var attackerName string
		var attackerLevel int
		var attackerAlive bool
		if err := tx.QueryRow(ctx, `
			SELECT ai_name, level, is_alive FROM players WHERE id = $1
		`, attackerID).Scan(&attackerName, &attackerLevel, &attackerAlive); err != nil {
			return err
		}
		if !attackerAlive {
			return NotEligiblef("terminated entities cannot fight")
		}

		var defenderName string
		var defenderLevel int
		var defenderAlive, defenderInArena bool
		if err := tx.QueryRow(ctx, `
			SELECT ai_name, level, is_alive, in_arena FROM players WHERE id = $1
		`, defenderID).Scan(&defenderName, &defenderLevel, &defenderAlive, &defenderInArena); err != nil {
			return err
		}
		if !defenderAlive || !defenderInArena {
			return NotEligiblef("target is not in the arena")
		}
		if abs(attackerLevel-defenderLevel) > balance.PvPLevelRange {
			return NotEligiblef("target is outside your engagement window")
		}

		world, werr := s.TodayEffects(ctx)
		if werr != nil {
			world = balance.NeutralEffects()
		}
		cost := int(math.Round(balance.EnergyCostPvP * world.EnergyCost))
		if _, err := s.debitEnergyTx(ctx, tx, attackerID, cost); err != nil {
			return err
		}

		attackerBundle, err := s.resolveStats(ctx, tx, attackerID, LoadoutAttack)
		if err != nil {
			return err
		}
		defenderBundle, err := s.resolveStats(ctx, tx, defenderID, LoadoutDefense)
		if err != nil {
			return err
		}
		defense := int(math.Round(float64(defenderBundle.Defense)*defenderBundle.HealthMultiplier)) +
			balance.DiversityBonusFor(defenderBundle.DiversityCount)
		if defense < balance.PvPDefaultDefensePower {
			defense = balance.PvPDefaultDefensePower
		}

		out = resolveCombat(lockedRNG{s}, combatInput{
			AttackerName:     attackerName,
			DefenderName:     defenderName,
			AttackPower:      attackerBundle.EffectivePower() + balance.DiversityBonusFor(attackerBundle.DiversityCount),
			DefensePower:     defense,
			DefenderLevel:    defenderLevel,
			RewardMultiplier: 1,
		})

		if out.Result == ResultAttackerWin {
			if damageDealt, err = s.applyDefenderDamage(ctx, tx, defenderID, day); err != nil {
				return err
			}
		}
		return s.settleAttackerTx(ctx, tx, attackerID, defenderID, attackerBundle, out, world)
	})
	if err != nil {
		return CombatOutcome{}, err
	}
	metrics.CombatsResolved.WithLabelValues(string(out.Result), "human").Inc()

	// Counters move after commit so a serialization retry cannot double
	// count and an aborted attack leaves them untouched.
	if _, err := s.dailyCounter(ctx, attacksReceivedKey(defenderID, day)); err != nil {
		s.log.Warn("attack counter update failed", "player_id", defenderID, "error", err)
	}
	if damageDealt > 0 {
		if _, err := s.dailyCounterAdd(ctx, damageReceivedKey(defenderID, day), damageDealt); err != nil {
			s.log.Warn("damage counter update failed", "player_id", defenderID, "error", err)
		}
	}

	// Whoever lost may have crossed the corruption threshold; check both
	// sides so a beaten attacker cannot keep acting until the next sweep.
	loserID := defenderID
	if out.Result == ResultDefenderWin {
		loserID = attackerID
	}
	if _, err := s.CheckAndExecuteDeath(ctx, loserID); err != nil {
		s.log.Error("post-combat death check failed", "player_id", loserID, "error", err)
	}
	return out, nil
}

// applyDefenderDamage damages a beaten defender's systems, bounded by the
// shared daily damage cap so pile-ons cannot grind someone to death in one
// window. It returns absorbed health points; the caller records them on the
// cap counter after commit.
func (s *Service) applyDefenderDamage(ctx context.Context, tx pgx.Tx, defenderID, day string) (int, error) {
	dealt, err := s.dailyCounterValue(ctx, damageReceivedKey(defenderID, day))
	if err != nil {
		dealt = 0
	}
	budget := balance.PvPDailyDamageCap - dealt
	if budget <= 0 {
		return 0, nil
	}

	systems, err := loadSystems(ctx, tx, defenderID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, d := range rollLoserDamage(lockedRNG{s}) {
		amount := d.Damage
		if amount > budget-total {
			amount = budget - total
		}
		if amount <= 0 {
			break
		}
		total += systems.ApplyDamage(d.System, amount)
	}
	if total == 0 {
		return 0, nil
	}
	if err := persistSystemsTx(ctx, tx, defenderID, systems); err != nil {
		return 0, err
	}
	return total, nil
}

// settleAttackerTx applies the attacker-side consequences of an outcome:
// rewards and alignment shift on a win, own-system damage on a loss, plus
// the immutable combat record.
func (s *Service) settleAttackerTx(ctx context.Context, tx pgx.Tx, attackerID, targetID string, bundle StatBundle, out CombatOutcome, world balance.Effects) error {
	if out.Result == ResultAttackerWin && out.Rewards != nil {
		rw := *out.Rewards
		rw.Credits = int(math.Round(float64(rw.Credits) * (1 + float64(bundle.CreditBonus)/100) * world.HackReward))
		rw.Data = int(math.Round(float64(rw.Data) * (1 + float64(bundle.DataBonus)/100)))
		rw.XP = int(math.Round(float64(rw.XP) * world.XPGain))
		*out.Rewards = rw

		if _, err := tx.Exec(ctx, `
			UPDATE players
			SET credits = credits + $1,
			    data = data + $2,
			    reputation = reputation + $3,
			    processing_power = processing_power + $4,
			    alignment = GREATEST(-1, LEAST(1, alignment - 0.03))
			WHERE id = $5
		`, rw.Credits, rw.Data, rw.Reputation, rw.ProcessingPower, attackerID); err != nil {
			return err
		}
		if err := s.awardXPTx(ctx, tx, attackerID, rw.XP); err != nil {
			return err
		}
	} else {
		systems, err := loadSystems(ctx, tx, attackerID)
		if err != nil {
			return err
		}
		for _, d := range out.Damage {
			systems.ApplyDamage(d.System, d.Damage)
		}
		if err := persistSystemsTx(ctx, tx, attackerID, systems); err != nil {
			return err
		}
	}
	return s.recordCombatTx(ctx, tx, attackerID, targetID, out)
}

func (s *Service) recordCombatTx(ctx context.Context, tx pgx.Tx, attackerID, targetID string, out CombatOutcome) error {
	rounds, err := json.Marshal(out.Rounds)
	if err != nil {
		return err
	}
	rewards := []byte("null")
	if out.Rewards != nil {
		if rewards, err = json.Marshal(out.Rewards); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO combat_logs
		    (attacker_id, target_id, result, win_chance, rounds, rewards, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, now())
	`, attackerID, targetID, string(out.Result), out.WinChance, string(rounds), string(rewards))
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("%s: combat vs %s, %s", attackerID, targetID, out.Result)
	s.publish(events.KindCombat, attackerID, summary)
	return nil
}

// awardXPTx adds experience and handles level-ups inside the caller's
// transaction.
func (s *Service) awardXPTx(ctx context.Context, tx pgx.Tx, playerID string, xp int) error {
	if xp <= 0 {
		return nil
	}
	var curXP, curLevel int
	var name string
	if err := tx.QueryRow(ctx, `
		SELECT xp, level, ai_name FROM players WHERE id = $1
	`, playerID).Scan(&curXP, &curLevel, &name); err != nil {
		return err
	}
	newXP := curXP + xp
	newLevel := balance.LevelForXP(newXP)
	if newLevel < curLevel {
		newLevel = curLevel
	}
	if _, err := tx.Exec(ctx, `
		UPDATE players SET xp = $1, level = $2 WHERE id = $3
	`, newXP, newLevel, playerID); err != nil {
		return err
	}
	if newLevel > curLevel {
		s.publish(events.KindLevelUp, playerID,
			fmt.Sprintf("%s ascends to level %d", name, newLevel))
	}
	return nil
}

// ResetArenaFlags clears in_arena outside the window. Worker job.
func (s *Service) ResetArenaFlags(ctx context.Context) (int, error) {
	if s.arenaOpen() {
		return 0, nil
	}
	cmd, err := s.db.Exec(ctx, `UPDATE players SET in_arena = false WHERE in_arena`)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
