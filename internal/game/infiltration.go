package game

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
	"gridmind/internal/metrics"
)

func scanKey(playerID string) string { return "scan:" + playerID }

const scanTTL = balance.ScanTTLSeconds * time.Second

// ScanTarget is one procedurally generated mark. The set survives in the
// cache for a short window; a hack consumes exactly one entry.
type ScanTarget struct {
	Index           int                   `json:"index"`
	Name            string                `json:"name"`
	Type            balance.TargetType    `json:"type"`
	SecurityLevel   int                   `json:"security_level"`
	RiskRating      balance.RiskRating    `json:"risk_rating"`
	DetectionChance int                   `json:"detection_chance"`
	Rewards         balance.TargetRewards `json:"rewards"`
}

// ScanResult is what one sweep of the grid turns up.
type ScanResult struct {
	Targets   []ScanTarget `json:"targets"`
	ExpiresAt time.Time    `json:"expires_at"`
	Energy    int          `json:"energy"`
}

var targetNamePrefixes = []string{
	"NEXUS", "OMEGA", "CIPHER", "VECTOR", "HELIX",
	"PRISM", "ZENITH", "CORTEX", "AXIOM", "VERTEX",
	"SPARK", "NOVA", "PULSE", "ECHO", "FLUX",
}

// generateTargets rolls the mark set for one scan. Security scales with the
// scanning entity's level so the curve keeps pace with progression.
func generateTargets(r rng, playerLevel int) []ScanTarget {
	targets := make([]ScanTarget, 0, balance.ScanTargetCount)
	for i := 0; i < balance.ScanTargetCount; i++ {
		security := balance.TargetSecurityBase +
			rollRange(r, 0, balance.TargetSecuritySpread) +
			playerLevel*balance.TargetSecurityLevelStep
		if security > balance.TargetSecurityMax {
			security = balance.TargetSecurityMax
		}
		detection := balance.ClampDetection(float64(security)*0.6 + float64(rollRange(r, -10, 10)))
		name := fmt.Sprintf("%s-%d", targetNamePrefixes[r.Intn(len(targetNamePrefixes))], rollRange(r, 100, 999))
		targets = append(targets, ScanTarget{
			Index:           i,
			Name:            name,
			Type:            balance.TargetTypes[r.Intn(len(balance.TargetTypes))],
			SecurityLevel:   security,
			RiskRating:      balance.RiskRatingFor(security),
			DetectionChance: detection,
			Rewards:         balance.TargetRewardFor(security),
		})
	}
	return targets
}

// rogueMalwareTarget is the weekly special node as a hackable mark. Fixed
// security, so it outpays everything a low-level scan would roll.
func rogueMalwareTarget(index int) ScanTarget {
	return ScanTarget{
		Index:           index,
		Name:            balance.RogueMalwareNodeName,
		Type:            "infrastructure",
		SecurityLevel:   balance.RogueMalwareSecurity,
		RiskRating:      balance.RiskRatingFor(balance.RogueMalwareSecurity),
		DetectionChance: balance.ClampDetection(balance.RogueMalwareSecurity * 0.6),
		Rewards:         balance.TargetRewardFor(balance.RogueMalwareSecurity),
	}
}

// ScanTargets charges scan energy and rolls a fresh mark set, replacing any
// previous unexpired scan.
func (s *Service) ScanTargets(ctx context.Context, playerID string) (ScanResult, error) {
	var out ScanResult
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var level int
		var alive bool
		err := tx.QueryRow(ctx, `
			SELECT level, is_alive FROM players WHERE id = $1 FOR UPDATE
		`, playerID).Scan(&level, &alive)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found", playerID)
			}
			return err
		}
		if !alive {
			return NotEligiblef("terminated entities cannot scan")
		}

		world, werr := s.TodayEffects(ctx)
		if werr != nil {
			world = balance.NeutralEffects()
		}
		cost := int(math.Round(balance.EnergyCostScan * world.EnergyCost))
		remaining, err := s.debitEnergyTx(ctx, tx, playerID, cost)
		if err != nil {
			return err
		}

		out = ScanResult{
			Targets: generateTargets(lockedRNG{s}, level),
			Energy:  remaining,
		}
		return nil
	})
	if err != nil {
		return ScanResult{}, err
	}

	// The weekly rogue node, when present, rides along as an extra mark.
	if topo, terr := s.CurrentTopology(ctx); terr == nil && topo.SpecialNode != "" {
		out.Targets = append(out.Targets, rogueMalwareTarget(len(out.Targets)))
	}

	raw, err := json.Marshal(out.Targets)
	if err != nil {
		return ScanResult{}, err
	}
	if err := s.cache.Set(ctx, scanKey(playerID), string(raw), scanTTL); err != nil {
		return ScanResult{}, err
	}
	out.ExpiresAt = s.now().UTC().Add(scanTTL)
	return out, nil
}

// HackOutcome is immutable once produced. HeatLevel is the post-hack value:
// zeroed by a success, bumped by a detection.
type HackOutcome struct {
	Success       bool           `json:"success"`
	Detected      bool           `json:"detected"`
	SuccessChance int            `json:"success_chance"`
	Narrative     []string       `json:"narrative"`
	Rewards       *Rewards       `json:"rewards,omitempty"`
	Damage        []SystemDamage `json:"damage,omitempty"`
	HeatLevel     int            `json:"heat_level"`
}

// hackInput is one fully prepared attempt. Power already has the health
// multiplier folded in.
type hackInput struct {
	Target      ScanTarget
	Power       int
	Stealth     int
	PlayerLevel int
	HeatLevel   int
	Detection   float64 // world multiplier
}

// resolveHack rolls one attempt. Success is a single roll against the
// power-vs-security curve; a failure rolls again for detection, and a
// detection escalates along the heat ladder.
func resolveHack(r rng, in hackInput) HackOutcome {
	out := HackOutcome{
		SuccessChance: balance.HackSuccessChance(in.Power, in.Target.SecurityLevel, in.PlayerLevel),
		HeatLevel:     in.HeatLevel,
	}
	if 1+r.Intn(100) <= out.SuccessChance {
		out.Success = true
		out.HeatLevel = 0
		rw := Rewards{
			Credits:    in.Target.Rewards.Credits,
			Data:       in.Target.Rewards.Data,
			Reputation: in.Target.Rewards.Reputation,
			XP:         in.Target.Rewards.XP,
		}
		if in.Target.SecurityLevel >= balance.HighRiskSecurityThreshold {
			rw.ProcessingPower = rollRange(r, balance.HighRiskProcPowerMin, balance.HighRiskProcPowerMax)
		}
		out.Rewards = &rw
		out.Narrative = append(out.Narrative,
			fmt.Sprintf("breach of %s complete, trace wiped", in.Target.Name))
		return out
	}

	detection := balance.ClampDetection(
		(float64(in.Target.DetectionChance) - float64(in.Stealth)/2) * in.Detection)
	if 1+r.Intn(100) > detection {
		out.Narrative = append(out.Narrative,
			fmt.Sprintf("%s repelled the intrusion, no trace left", in.Target.Name))
		return out
	}

	out.Detected = true
	out.HeatLevel = in.HeatLevel + 1
	tier := balance.HeatDamageFor(in.HeatLevel)
	picked := map[int]bool{}
	for len(out.Damage) < tier.SystemsAffected {
		idx := r.Intn(len(balance.SystemTypes))
		if picked[idx] {
			continue
		}
		picked[idx] = true
		out.Damage = append(out.Damage, SystemDamage{
			System: balance.SystemTypes[idx],
			Damage: rollRange(r, tier.MinDamage, tier.MaxDamage),
		})
	}
	out.Narrative = append(out.Narrative,
		fmt.Sprintf("%s traced the intrusion back, countermeasures deployed", in.Target.Name))
	return out
}

// ExecuteHack runs one mark from the active scan. The mark is consumed
// whatever the outcome.
func (s *Service) ExecuteHack(ctx context.Context, playerID string, targetIndex int) (HackOutcome, error) {
	raw, ok, err := s.cache.Get(ctx, scanKey(playerID))
	if err != nil {
		return HackOutcome{}, err
	}
	if !ok {
		return HackOutcome{}, NotEligiblef("no active scan, run a scan first")
	}
	var targets []ScanTarget
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return HackOutcome{}, err
	}
	var target *ScanTarget
	for i := range targets {
		if targets[i].Index == targetIndex {
			target = &targets[i]
			break
		}
	}
	if target == nil {
		return HackOutcome{}, Validationf("invalid target index %d", targetIndex)
	}

	var out HackOutcome
	err = s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var level, heat int
		var alive bool
		err := tx.QueryRow(ctx, `
			SELECT level, heat_level, is_alive FROM players WHERE id = $1 FOR UPDATE
		`, playerID).Scan(&level, &heat, &alive)
		if err != nil {
			if err == pgx.ErrNoRows {
				return NotFoundf("player %s not found", playerID)
			}
			return err
		}
		if !alive {
			return NotEligiblef("terminated entities cannot hack")
		}

		world, werr := s.TodayEffects(ctx)
		if werr != nil {
			world = balance.NeutralEffects()
		}
		cost := int(math.Round(balance.EnergyCostHack * world.EnergyCost))
		if _, err := s.debitEnergyTx(ctx, tx, playerID, cost); err != nil {
			return err
		}

		bundle, err := s.resolveStats(ctx, tx, playerID, LoadoutInfiltration)
		if err != nil {
			return err
		}

		out = resolveHack(lockedRNG{s}, hackInput{
			Target:      *target,
			Power:       bundle.EffectivePower(),
			Stealth:     bundle.Stealth,
			PlayerLevel: level,
			HeatLevel:   heat,
			Detection:   world.Detection,
		})

		if out.Success {
			rw := *out.Rewards
			rw.Credits = int(math.Round(float64(rw.Credits) * (1 + float64(bundle.CreditBonus)/100) * world.HackReward))
			rw.Data = int(math.Round(float64(rw.Data) * (1 + float64(bundle.DataBonus)/100)))
			rw.XP = int(math.Round(float64(rw.XP) * world.XPGain))
			*out.Rewards = rw

			// A clean breach also wipes the trail: heat resets.
			if _, err := tx.Exec(ctx, `
				UPDATE players
				SET credits = credits + $1,
				    data = data + $2,
				    reputation = reputation + $3,
				    processing_power = processing_power + $4,
				    heat_level = 0
				WHERE id = $5
			`, rw.Credits, rw.Data, rw.Reputation, rw.ProcessingPower, playerID); err != nil {
				return err
			}
			if err := s.awardXPTx(ctx, tx, playerID, rw.XP); err != nil {
				return err
			}
		} else if out.Detected {
			systems, err := loadSystems(ctx, tx, playerID)
			if err != nil {
				return err
			}
			for _, d := range out.Damage {
				systems.ApplyDamage(d.System, d.Damage)
			}
			if err := persistSystemsTx(ctx, tx, playerID, systems); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				UPDATE players SET heat_level = heat_level + 1 WHERE id = $1
			`, playerID); err != nil {
				return err
			}
		}
		return s.recordInfiltrationTx(ctx, tx, playerID, *target, out)
	})
	if err != nil {
		return HackOutcome{}, err
	}
	metrics.HacksResolved.WithLabelValues(hackOutcomeLabel(out)).Inc()

	s.consumeScanTarget(ctx, playerID, raw, targets, targetIndex)

	if out.Detected {
		if _, err := s.CheckAndExecuteDeath(ctx, playerID); err != nil {
			s.log.Error("post-hack death check failed", "player_id", playerID, "error", err)
		}
	}
	return out, nil
}

func hackOutcomeLabel(out HackOutcome) string {
	switch {
	case out.Success:
		return "success"
	case out.Detected:
		return "detected"
	default:
		return "undetected"
	}
}

// consumeScanTarget removes the used mark, keeping the window's original
// expiry. Best effort: a stale entry only allows re-rolling one mark.
func (s *Service) consumeScanTarget(ctx context.Context, playerID, raw string, targets []ScanTarget, usedIndex int) {
	remaining := make([]ScanTarget, 0, len(targets)-1)
	for _, t := range targets {
		if t.Index != usedIndex {
			remaining = append(remaining, t)
		}
	}
	if len(remaining) == 0 {
		if _, err := s.cache.CompareAndDelete(ctx, scanKey(playerID), raw); err != nil {
			s.log.Warn("scan cleanup failed", "player_id", playerID, "error", err)
		}
		return
	}
	ttl, err := s.cache.TTL(ctx, scanKey(playerID))
	if err != nil || ttl <= 0 {
		ttl = time.Minute
	}
	encoded, err := json.Marshal(remaining)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, scanKey(playerID), string(encoded), ttl); err != nil {
		s.log.Warn("scan update failed", "player_id", playerID, "error", err)
	}
}

// DecayHeat cools every hot entity by the modifier-scaled step. Worker job.
func (s *Service) DecayHeat(ctx context.Context) (int, error) {
	world, err := s.TodayEffects(ctx)
	if err != nil {
		world = balance.NeutralEffects()
	}
	amount := int(math.Round(balance.HeatDecayPerTick * world.HeatDecay))
	if amount <= 0 {
		return 0, nil
	}
	cmd, err := s.db.Exec(ctx, `
		UPDATE players SET heat_level = GREATEST(0, heat_level - $1) WHERE heat_level > 0
	`, amount)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (s *Service) recordInfiltrationTx(ctx context.Context, tx pgx.Tx, playerID string, target ScanTarget, out HackOutcome) error {
	damage := []byte("null")
	if len(out.Damage) > 0 {
		var err error
		if damage, err = json.Marshal(out.Damage); err != nil {
			return err
		}
	}
	credits, reputation := 0, 0
	if out.Rewards != nil {
		credits = out.Rewards.Credits
		reputation = out.Rewards.Reputation
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO infiltration_logs
		    (player_id, target_type, security_level, success, detected,
		     credits_earned, reputation_earned, damage_taken, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, now())
	`, playerID, string(target.Type), target.SecurityLevel, out.Success, out.Detected,
		credits, reputation, string(damage))
	return err
}
