package balance

import (
	"math/rand"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		health int
		want   SystemStatus
	}{
		{health: 100, want: StatusOptimal},
		{health: 75, want: StatusOptimal},
		{health: 74, want: StatusDegraded},
		{health: 30, want: StatusDegraded},
		{health: 29, want: StatusCritical},
		{health: 1, want: StatusCritical},
		{health: 0, want: StatusCorrupted},
		{health: -5, want: StatusCorrupted},
	}
	for _, tc := range tests {
		if got := StatusOf(tc.health); got != tc.want {
			t.Fatalf("health=%d got=%s want=%s", tc.health, got, tc.want)
		}
	}
}

func TestRepairCost(t *testing.T) {
	tests := []struct {
		health int
		level  int
		want   int
	}{
		{health: 100, level: 1, want: 6},
		{health: 80, level: 1, want: 16},
		{health: 40, level: 1, want: 37},
		{health: 0, level: 1, want: 58},
		{health: 40, level: 5, want: 52},
	}
	for _, tc := range tests {
		got := RepairCost(tc.health, tc.level)
		if got != tc.want {
			t.Fatalf("health=%d level=%d got=%d want=%d", tc.health, tc.level, got, tc.want)
		}
	}

	// A badly damaged subsystem must cost more per repair than a mildly
	// damaged one, at every level.
	for level := 1; level <= MaxLevel; level++ {
		if RepairCost(40, level) <= RepairCost(80, level) {
			t.Fatalf("level %d: repair from 40 should exceed repair from 80", level)
		}
	}
}

func TestWinChance(t *testing.T) {
	if got := WinChance(60, 40); got != 66 {
		t.Fatalf("60 vs 40 got %v want 66", got)
	}
	if got := WinChance(50, 50); got != 50 {
		t.Fatalf("even match got %v want 50", got)
	}
	if got := WinChance(10_000, 0); got != WinChanceMax {
		t.Fatalf("overwhelming attacker got %v want %v", got, float64(WinChanceMax))
	}
	if got := WinChance(0, 10_000); got != WinChanceMin {
		t.Fatalf("overwhelmed attacker got %v want %v", got, float64(WinChanceMin))
	}

	prev := WinChance(0, 100)
	for attack := 10; attack <= 300; attack += 10 {
		cur := WinChance(attack, 100)
		if cur < prev {
			t.Fatalf("win chance not monotonic at attack=%d: %v < %v", attack, cur, prev)
		}
		prev = cur
	}
}

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{xp: 0, want: 1},
		{xp: 99, want: 1},
		{xp: 100, want: 2},
		{xp: 249, want: 2},
		{xp: 250, want: 3},
		{xp: 4200, want: 10},
		{xp: 999_999, want: 10},
	}
	for _, tc := range tests {
		if got := LevelForXP(tc.xp); got != tc.want {
			t.Fatalf("xp=%d got=%d want=%d", tc.xp, got, tc.want)
		}
	}

	if got := XPForNextLevel(MaxLevel); got != -1 {
		t.Fatalf("expected -1 at cap, got %d", got)
	}
	if got := XPForNextLevel(1); got != 100 {
		t.Fatalf("level 2 threshold got %d want 100", got)
	}
}

func TestEnergyCurves(t *testing.T) {
	if got := EnergyCap(1); got != 100 {
		t.Fatalf("cap at level 1 got %d", got)
	}
	if got := EnergyCap(10); got != 145 {
		t.Fatalf("cap at level 10 got %d", got)
	}
	if got := EnergyCap(0); got != 100 {
		t.Fatalf("cap clamps below level 1, got %d", got)
	}
	if got := EnergyRegenPerHour(1); got != 120 {
		t.Fatalf("regen at level 1 got %v", got)
	}
	if got := EnergyRegenPerHour(5); got != 144 {
		t.Fatalf("regen at level 5 got %v", got)
	}
}

func TestDiversityBonusFor(t *testing.T) {
	tests := []struct{ categories, want int }{
		{0, 0}, {1, 0}, {2, 15}, {3, 30}, {4, 30},
	}
	for _, tc := range tests {
		if got := DiversityBonusFor(tc.categories); got != tc.want {
			t.Fatalf("categories=%d got=%d want=%d", tc.categories, got, tc.want)
		}
	}
}

func TestPerksFor(t *testing.T) {
	if p := PerksFor(0.79); p != nil {
		t.Fatalf("expected no perks just below the extreme")
	}
	if p := PerksFor(-0.79); p != nil {
		t.Fatalf("expected no perks just above the negative extreme")
	}
	p := PerksFor(0.8)
	if p == nil || p.ReputationBonus != 0.25 {
		t.Fatalf("expected benevolent perks at 0.8, got %+v", p)
	}
	p = PerksFor(-1)
	if p == nil || p.AttackBonus != 0.20 {
		t.Fatalf("expected domination perks at -1, got %+v", p)
	}
}

func TestModuleCost(t *testing.T) {
	def, ok := ModuleByID("core_booster")
	if !ok {
		t.Fatalf("catalog missing core_booster")
	}
	tests := []struct{ level, want int }{
		{1, 80}, {2, 120}, {3, 180}, {4, 270}, {5, 405},
	}
	for _, tc := range tests {
		if got := ModuleCost(def, tc.level); got != tc.want {
			t.Fatalf("level=%d got=%d want=%d", tc.level, got, tc.want)
		}
	}
}

func TestPickDailyModifier(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	counts := map[ModifierSeverity]int{}
	for i := 0; i < 2000; i++ {
		m := PickDailyModifier(r)
		if _, ok := ModifierByID(m.ID); !ok {
			t.Fatalf("picked modifier %q not in pool", m.ID)
		}
		counts[m.Severity]++
	}
	if counts[SeverityMinor] == 0 || counts[SeverityMajor] == 0 {
		t.Fatalf("expected both severities over 2000 draws, got %+v", counts)
	}
	if counts[SeverityMinor] <= counts[SeverityMajor] {
		t.Fatalf("minor should dominate the draw: %+v", counts)
	}
}

func TestEffectsForModifier(t *testing.T) {
	if got := EffectsForModifier("no_such_modifier"); got != NeutralEffects() {
		t.Fatalf("unknown modifier should yield neutral effects, got %+v", got)
	}
	e := EffectsForModifier("power_surge")
	if e.EnergyCost != 0.85 {
		t.Fatalf("power_surge energy cost got %v", e.EnergyCost)
	}
	if e.HackReward != 1 {
		t.Fatalf("power_surge should leave hack reward neutral, got %v", e.HackReward)
	}
}

func TestApplyTopologyEffect(t *testing.T) {
	e := ApplyTopologyEffect(NeutralEffects(), TopologyEffect{Axis: "hack_reward", Value: 1.2})
	if e.HackReward != 1.2 {
		t.Fatalf("hack reward got %v", e.HackReward)
	}
	e = ApplyTopologyEffect(e, TopologyEffect{Axis: "degradation_rate", Value: 1.3})
	if e.DegradationRate != 1.3 || e.HackReward != 1.2 {
		t.Fatalf("effects should compose, got %+v", e)
	}
	if got := ApplyTopologyEffect(NeutralEffects(), TopologyEffect{Axis: "unknown"}); got != NeutralEffects() {
		t.Fatalf("unknown axis should be inert")
	}
}
