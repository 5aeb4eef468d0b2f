package game

import (
	mathrand "math/rand"
	"testing"

	"gridmind/internal/balance"
)

func TestGenerateTargets(t *testing.T) {
	const level = 4
	r := mathrand.New(mathrand.NewSource(11))
	targets := generateTargets(r, level)

	if len(targets) != balance.ScanTargetCount {
		t.Fatalf("got %d targets, want %d", len(targets), balance.ScanTargetCount)
	}
	lo := balance.TargetSecurityBase + level*balance.TargetSecurityLevelStep
	hi := lo + balance.TargetSecuritySpread
	for i, tgt := range targets {
		if tgt.Index != i {
			t.Errorf("target %d carries index %d", i, tgt.Index)
		}
		if tgt.Name == "" {
			t.Errorf("target %d has no name", i)
		}
		if tgt.SecurityLevel < lo || tgt.SecurityLevel > hi {
			t.Errorf("target %d security %d outside [%d, %d]", i, tgt.SecurityLevel, lo, hi)
		}
		if tgt.RiskRating != balance.RiskRatingFor(tgt.SecurityLevel) {
			t.Errorf("target %d risk %s does not match security %d", i, tgt.RiskRating, tgt.SecurityLevel)
		}
		if tgt.DetectionChance < balance.DetectionChanceMin || tgt.DetectionChance > balance.DetectionChanceMax {
			t.Errorf("target %d detection %d out of bounds", i, tgt.DetectionChance)
		}
		if tgt.Rewards != balance.TargetRewardFor(tgt.SecurityLevel) {
			t.Errorf("target %d rewards do not follow the curve", i)
		}
	}

	// Same seed, same marks.
	again := generateTargets(mathrand.New(mathrand.NewSource(11)), level)
	for i := range targets {
		if targets[i] != again[i] {
			t.Fatalf("target %d not deterministic: %+v vs %+v", i, targets[i], again[i])
		}
	}
}

func TestGenerateTargetsSecurityCap(t *testing.T) {
	r := mathrand.New(mathrand.NewSource(3))
	for _, tgt := range generateTargets(r, 40) {
		if tgt.SecurityLevel != balance.TargetSecurityMax {
			t.Fatalf("level 40 target security %d, want capped %d",
				tgt.SecurityLevel, balance.TargetSecurityMax)
		}
	}
}

func TestRogueMalwareTarget(t *testing.T) {
	tgt := rogueMalwareTarget(5)
	if tgt.Index != 5 || tgt.Name != balance.RogueMalwareNodeName {
		t.Fatalf("unexpected special target %+v", tgt)
	}
	if tgt.SecurityLevel != balance.RogueMalwareSecurity || tgt.RiskRating != balance.RiskCritical {
		t.Fatalf("special target security/risk %d/%s", tgt.SecurityLevel, tgt.RiskRating)
	}
	if tgt.Rewards != balance.TargetRewardFor(balance.RogueMalwareSecurity) {
		t.Fatalf("special target rewards off the curve: %+v", tgt.Rewards)
	}
}

func TestResolveHackShape(t *testing.T) {
	target := ScanTarget{
		Index:           0,
		Name:            "NEXUS-101",
		Type:            "database",
		SecurityLevel:   60,
		RiskRating:      balance.RiskRatingFor(60),
		DetectionChance: 40,
		Rewards:         balance.TargetRewardFor(60),
	}
	in := hackInput{
		Target:      target,
		Power:       30,
		Stealth:     10,
		PlayerLevel: 6,
		HeatLevel:   1,
		Detection:   1,
	}

	var successes, detections, cleanFails int
	for seed := int64(0); seed < 60; seed++ {
		out := resolveHack(mathrand.New(mathrand.NewSource(seed)), in)
		if out.SuccessChance != 28 { // 58 + 30 - 60
			t.Fatalf("seed %d: success chance %d, want 28", seed, out.SuccessChance)
		}
		if len(out.Narrative) != 1 || out.Narrative[0] == "" {
			t.Fatalf("seed %d: narrative %v", seed, out.Narrative)
		}
		switch {
		case out.Success:
			successes++
			if out.Rewards == nil || out.Detected || len(out.Damage) != 0 {
				t.Fatalf("seed %d: inconsistent success %+v", seed, out)
			}
			if out.HeatLevel != 0 {
				t.Fatalf("seed %d: success left heat at %d", seed, out.HeatLevel)
			}
			if out.Rewards.ProcessingPower != 0 {
				t.Fatalf("seed %d: processing power below the high-risk threshold", seed)
			}
		case out.Detected:
			detections++
			if out.Rewards != nil {
				t.Fatalf("seed %d: detected hack paid out", seed)
			}
			if out.HeatLevel != in.HeatLevel+1 {
				t.Fatalf("seed %d: detection heat %d, want %d", seed, out.HeatLevel, in.HeatLevel+1)
			}
			tier := balance.HeatDamageFor(in.HeatLevel)
			if len(out.Damage) != tier.SystemsAffected {
				t.Fatalf("seed %d: %d systems damaged, want %d", seed, len(out.Damage), tier.SystemsAffected)
			}
			seen := map[balance.SystemType]bool{}
			for _, d := range out.Damage {
				if seen[d.System] {
					t.Fatalf("seed %d: system %s damaged twice", seed, d.System)
				}
				seen[d.System] = true
				if d.Damage < tier.MinDamage || d.Damage > tier.MaxDamage {
					t.Fatalf("seed %d: damage %d outside [%d, %d]", seed, d.Damage, tier.MinDamage, tier.MaxDamage)
				}
			}
		default:
			cleanFails++
			if out.Rewards != nil || len(out.Damage) != 0 {
				t.Fatalf("seed %d: undetected failure has consequences %+v", seed, out)
			}
			if out.HeatLevel != in.HeatLevel {
				t.Fatalf("seed %d: undetected failure moved heat to %d", seed, out.HeatLevel)
			}
		}
	}
	if successes == 0 || detections == 0 || cleanFails == 0 {
		t.Fatalf("not all outcomes observed: %d/%d/%d", successes, detections, cleanFails)
	}
}

func TestResolveHackHighRiskProcessingPower(t *testing.T) {
	target := rogueMalwareTarget(0)
	in := hackInput{Target: target, Power: 200, Stealth: 0, PlayerLevel: 10, HeatLevel: 0, Detection: 1}

	var successes int
	for seed := int64(0); seed < 30; seed++ {
		out := resolveHack(mathrand.New(mathrand.NewSource(seed)), in)
		if out.SuccessChance != balance.HackSuccessMax {
			t.Fatalf("seed %d: chance %d, want ceiling %d", seed, out.SuccessChance, balance.HackSuccessMax)
		}
		if !out.Success {
			continue
		}
		successes++
		if out.Rewards.ProcessingPower < balance.HighRiskProcPowerMin ||
			out.Rewards.ProcessingPower > balance.HighRiskProcPowerMax {
			t.Fatalf("seed %d: processing power %d out of range", seed, out.Rewards.ProcessingPower)
		}
	}
	if successes == 0 {
		t.Fatal("no successes at the chance ceiling")
	}
}

func TestResolveHackHeatSaturation(t *testing.T) {
	target := ScanTarget{
		SecurityLevel:   95,
		DetectionChance: 95,
		Rewards:         balance.TargetRewardFor(95),
	}
	in := hackInput{Target: target, Power: 0, Stealth: 0, PlayerLevel: 10, HeatLevel: 7, Detection: 1}

	var detections int
	for seed := int64(0); seed < 30; seed++ {
		out := resolveHack(mathrand.New(mathrand.NewSource(seed)), in)
		if !out.Detected {
			continue
		}
		detections++
		tier := balance.HeatDamageFor(7)
		if len(out.Damage) != tier.SystemsAffected {
			t.Fatalf("seed %d: saturated heat damaged %d systems, want %d",
				seed, len(out.Damage), tier.SystemsAffected)
		}
		if out.HeatLevel != 8 {
			t.Fatalf("seed %d: heat %d, want 8", seed, out.HeatLevel)
		}
	}
	if detections == 0 {
		t.Fatal("no detections at maximum detection chance")
	}
}
