package game

import (
	mathrand "math/rand"
	"testing"

	"gridmind/internal/balance"
)

func TestResolveCombatShape(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		r := mathrand.New(mathrand.NewSource(seed))
		out := resolveCombat(r, combatInput{
			AttackerName:     "ARES-7",
			DefenderName:     "VEX-Warden-01",
			AttackPower:      120,
			DefensePower:     100,
			DefenderLevel:    5,
			RewardMultiplier: 1,
		})

		if out.WinChance < balance.WinChanceMin || out.WinChance > balance.WinChanceMax {
			t.Fatalf("seed %d: win chance out of bounds: %v", seed, out.WinChance)
		}
		if len(out.Rounds) < 3 || len(out.Rounds) > 5 {
			t.Fatalf("seed %d: round count %d", seed, len(out.Rounds))
		}
		if len(out.Narrative) != len(out.Rounds) {
			t.Fatalf("seed %d: narrative/rounds mismatch %d vs %d", seed, len(out.Narrative), len(out.Rounds))
		}
		for i, line := range out.Narrative {
			if line == "" {
				t.Fatalf("seed %d: empty narrative line %d", seed, i)
			}
		}

		switch out.Result {
		case ResultAttackerWin:
			if out.Rewards == nil {
				t.Fatalf("seed %d: win without rewards", seed)
			}
			if len(out.Damage) != 0 {
				t.Fatalf("seed %d: winner took loser damage", seed)
			}
		case ResultDefenderWin:
			if out.Rewards != nil {
				t.Fatalf("seed %d: loss with rewards", seed)
			}
			if len(out.Damage) < balance.PvPLoserSystemsMin || len(out.Damage) > balance.PvPLoserSystemsMax {
				t.Fatalf("seed %d: loser damage hit %d systems", seed, len(out.Damage))
			}
			seen := map[balance.SystemType]bool{}
			for _, d := range out.Damage {
				if seen[d.System] {
					t.Fatalf("seed %d: duplicate damaged system %s", seed, d.System)
				}
				seen[d.System] = true
				if d.Damage < 10 || d.Damage > 20 {
					t.Fatalf("seed %d: loser damage %d out of range", seed, d.Damage)
				}
			}
		default:
			t.Fatalf("seed %d: unknown result %q", seed, out.Result)
		}
	}
}

func TestResolveCombatClampedChance(t *testing.T) {
	r := mathrand.New(mathrand.NewSource(1))
	out := resolveCombat(r, combatInput{AttackPower: 100_000, DefensePower: 0, RewardMultiplier: 1})
	if out.WinChance != balance.WinChanceMax {
		t.Fatalf("overwhelming attacker got chance %v", out.WinChance)
	}
	out = resolveCombat(r, combatInput{AttackPower: 0, DefensePower: 100_000, RewardMultiplier: 1})
	if out.WinChance != balance.WinChanceMin {
		t.Fatalf("overwhelmed attacker got chance %v", out.WinChance)
	}
}

func TestRollRewardsRanges(t *testing.T) {
	r := mathrand.New(mathrand.NewSource(7))
	for i := 0; i < 200; i++ {
		rw := rollRewards(r, 5, 1)
		if rw.Credits < balance.PvPRewardCreditsMin+5*balance.PvPRewardCreditsLevelBonus ||
			rw.Credits > balance.PvPRewardCreditsMax+5*balance.PvPRewardCreditsLevelBonus {
			t.Fatalf("credits %d out of range", rw.Credits)
		}
		if rw.Data < balance.PvPRewardDataMin+5 || rw.Data > balance.PvPRewardDataMax+5 {
			t.Fatalf("data %d out of range", rw.Data)
		}
		if rw.Reputation < balance.PvPRewardReputationMin || rw.Reputation > balance.PvPRewardReputationMax {
			t.Fatalf("reputation %d out of range", rw.Reputation)
		}
		if rw.XP != balance.PvPRewardXP {
			t.Fatalf("xp got %d", rw.XP)
		}
		if rw.ProcessingPower < 0 || rw.ProcessingPower > balance.PvPRewardProcPowerMax {
			t.Fatalf("processing power %d out of range", rw.ProcessingPower)
		}
	}
}

func TestRollRewardsMultiplierScales(t *testing.T) {
	full := rollRewards(mathrand.New(mathrand.NewSource(3)), 5, 1)
	scaled := rollRewards(mathrand.New(mathrand.NewSource(3)), 5, 0.5)
	if scaled.Credits >= full.Credits {
		t.Fatalf("scaled credits %d should be below full %d", scaled.Credits, full.Credits)
	}
	if scaled.Data >= full.Data {
		t.Fatalf("scaled data %d should be below full %d", scaled.Data, full.Data)
	}
	if scaled.XP != balance.PvPRewardXP/2 {
		t.Fatalf("scaled xp got %d", scaled.XP)
	}
}

func TestRollRange(t *testing.T) {
	r := mathrand.New(mathrand.NewSource(11))
	for i := 0; i < 100; i++ {
		v := rollRange(r, 3, 9)
		if v < 3 || v > 9 {
			t.Fatalf("value %d out of [3,9]", v)
		}
	}
	if got := rollRange(r, 5, 5); got != 5 {
		t.Fatalf("degenerate range got %d", got)
	}
	if got := rollRange(r, 7, 2); got != 7 {
		t.Fatalf("inverted range should return lo, got %d", got)
	}
}

// A losing attacker takes real subsystem damage; if they were already two
// corrupted systems down, that loss can push them over the death threshold.
// The combat flow must surface that state rather than leave a dead entity
// acting until the next sweep.
func TestLoserDamageCanTerminate(t *testing.T) {
	var deaths int
	for seed := int64(0); seed < 60; seed++ {
		systems := NewSystemSet()
		systems[balance.SystemTypes[0]] = 0
		systems[balance.SystemTypes[1]] = 0
		systems[balance.SystemTypes[2]] = 5

		r := mathrand.New(mathrand.NewSource(seed))
		for _, d := range rollLoserDamage(r) {
			systems.ApplyDamage(d.System, d.Damage)
		}
		if systems.IsDead() {
			deaths++
			if systems.CorruptedCount() < 3 {
				t.Fatalf("seed %d: dead with %d corrupted", seed, systems.CorruptedCount())
			}
		}
	}
	if deaths == 0 {
		t.Fatal("no seed pushed the wounded attacker over the threshold")
	}
}
