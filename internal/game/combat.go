package game

import (
	"fmt"
	"math"

	"gridmind/internal/balance"
)

// rng is the random surface combat needs. *math/rand.Rand satisfies it for
// tests; the service supplies a mutex-guarded wrapper.
type rng interface {
	Float64() float64
	Intn(n int) int
}

type lockedRNG struct{ s *Service }

func (l lockedRNG) Float64() float64 {
	return l.s.nextFloat()
}

func (l lockedRNG) Intn(n int) int {
	return l.s.randIndex(n)
}

// combatInput is one fully prepared engagement. Attack power already has the
// attacker's health multiplier folded in; defense power comes either from a
// defender's resolved bundle or a bot's derived stat.
type combatInput struct {
	AttackerName string
	DefenderName string
	AttackPower  int
	DefensePower int

	DefenderLevel    int
	RewardMultiplier float64 // 1.0 for humans, <1.0 for bots
}

// EffectivePower folds the health multiplier into the power axis. Reward
// math never calls this; combat always does.
func (b StatBundle) EffectivePower() int {
	return int(math.Round(float64(b.Power) * b.HealthMultiplier))
}

// resolveCombat rolls one engagement. A single uniform roll against the
// bounded win chance decides it; everything after the roll is bookkeeping
// and flavor.
func resolveCombat(r rng, in combatInput) CombatOutcome {
	if in.RewardMultiplier <= 0 {
		in.RewardMultiplier = 1
	}
	chance := balance.WinChance(in.AttackPower, in.DefensePower)
	roll := float64(1 + r.Intn(100))
	won := roll <= chance

	out := CombatOutcome{WinChance: chance}
	if won {
		out.Result = ResultAttackerWin
		out.Rewards = rollRewards(r, in.DefenderLevel, in.RewardMultiplier)
	} else {
		out.Result = ResultDefenderWin
		out.Damage = rollLoserDamage(r)
	}
	out.Rounds = buildRounds(r, in, won)
	for _, round := range out.Rounds {
		out.Narrative = append(out.Narrative, round.Description)
	}
	return out
}

func rollRange(r rng, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

func rollRewards(r rng, defenderLevel int, multiplier float64) *Rewards {
	scale := func(v int) int {
		return int(math.Round(float64(v) * multiplier))
	}
	rw := &Rewards{
		Credits:    scale(rollRange(r, balance.PvPRewardCreditsMin, balance.PvPRewardCreditsMax) + defenderLevel*balance.PvPRewardCreditsLevelBonus),
		Data:       scale(rollRange(r, balance.PvPRewardDataMin, balance.PvPRewardDataMax) + defenderLevel*balance.PvPRewardDataLevelBonus),
		Reputation: scale(rollRange(r, balance.PvPRewardReputationMin, balance.PvPRewardReputationMax)),
		XP:         scale(balance.PvPRewardXP),
	}
	// Processing power has its own independent drop chance.
	if r.Float64() < 0.35 {
		rw.ProcessingPower = rollRange(r, balance.PvPRewardProcPowerMin, balance.PvPRewardProcPowerMax)
	}
	return rw
}

// rollLoserDamage picks 1-2 distinct subsystems on the losing attacker and
// damages each by a percentage of max health.
func rollLoserDamage(r rng) []SystemDamage {
	count := rollRange(r, balance.PvPLoserSystemsMin, balance.PvPLoserSystemsMax)
	picked := map[int]bool{}
	var out []SystemDamage
	for len(out) < count {
		idx := r.Intn(len(balance.SystemTypes))
		if picked[idx] {
			continue
		}
		picked[idx] = true
		pct := rollRange(r, balance.PvPLoserDamageMinPct, balance.PvPLoserDamageMaxPct)
		out = append(out, SystemDamage{
			System: balance.SystemTypes[idx],
			Damage: balance.MaxSystemHealth * pct / 100,
		})
	}
	return out
}

// buildRounds fabricates the 3-5 round narrative. Cosmetic only; the win
// roll has already happened by the time this runs.
func buildRounds(r rng, in combatInput, won bool) []RoundDetail {
	count := rollRange(r, 3, 5)
	rounds := make([]RoundDetail, 0, count)
	for i := 1; i <= count; i++ {
		attack := balance.AttackPhrases[r.Intn(len(balance.AttackPhrases))]
		defend := balance.DefendPhrases[r.Intn(len(balance.DefendPhrases))]
		target := balance.SystemTypes[r.Intn(len(balance.SystemTypes))]

		// Later rounds trend toward the decided outcome.
		hit := won
		if i < count {
			hit = r.Float64() < 0.5
		}
		result := balance.MissPhrases[r.Intn(len(balance.MissPhrases))]
		damage := 0
		if hit {
			result = balance.HitPhrases[r.Intn(len(balance.HitPhrases))]
			damage = rollRange(r, 4, 14)
		}

		desc := fmt.Sprintf("%s %s %s, %s", in.AttackerName, attack, in.DefenderName, result)
		if i == count {
			gap := in.AttackPower - in.DefensePower
			verdict := "overwhelms"
			if !won {
				verdict = "is repelled by"
			}
			desc = fmt.Sprintf("%s %s %s (power gap %+d)", in.AttackerName, verdict, in.DefenderName, gap)
		}
		rounds = append(rounds, RoundDetail{
			Round:          i,
			AttackerAction: attack,
			DefenderAction: defend,
			Damage:         damage,
			TargetSystem:   target,
			Description:    desc,
		})
	}
	return rounds
}
