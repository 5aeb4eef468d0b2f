package game

import (
	"math"
	"testing"

	"gridmind/internal/balance"
)

func mustModule(t *testing.T, id string, level int, mutation string) ownedModule {
	t.Helper()
	def, ok := balance.ModuleByID(id)
	if !ok {
		t.Fatalf("catalog missing %s", id)
	}
	return ownedModule{Def: def, Level: level, Mutation: mutation}
}

func TestResolveBundleEmpty(t *testing.T) {
	b := resolveBundle(resolveInput{
		Systems: NewSystemSet(),
		World:   balance.NeutralEffects(),
	})
	if b.Power != 0 || b.Stealth != 0 || b.Defense != 0 || b.Efficiency != 0 ||
		b.CreditBonus != 0 || b.DataBonus != 0 {
		t.Fatalf("empty loadout should be all zeros, got %+v", b)
	}
	if b.DiversityCount != 0 {
		t.Fatalf("diversity got %d want 0", b.DiversityCount)
	}
	if b.HealthMultiplier != 1.0 {
		t.Fatalf("full-health multiplier got %v want 1.0", b.HealthMultiplier)
	}
	if b.World != balance.NeutralEffects() {
		t.Fatalf("world effects must pass through, got %+v", b.World)
	}
}

func TestResolveBundleModuleSums(t *testing.T) {
	b := resolveBundle(resolveInput{
		Modules: []ownedModule{
			mustModule(t, "core_booster", 2, ""),  // power 4 per level
			mustModule(t, "signal_router", 1, ""), // stealth 4
			mustModule(t, "data_miner", 1, ""),    // data 3, credit 1
		},
		Systems: NewSystemSet(),
		World:   balance.NeutralEffects(),
	})
	if b.Power != 8 {
		t.Fatalf("power got %d want 8", b.Power)
	}
	if b.Stealth != 4 {
		t.Fatalf("stealth got %d want 4", b.Stealth)
	}
	if b.DataBonus != 3 || b.CreditBonus != 1 {
		t.Fatalf("resource bonuses got data=%d credit=%d", b.DataBonus, b.CreditBonus)
	}
	// Three distinct categories, three modules.
	if b.DiversityCount != 3 {
		t.Fatalf("diversity got %d want 3", b.DiversityCount)
	}
}

func TestResolveBundleCountsCategoriesNotModules(t *testing.T) {
	b := resolveBundle(resolveInput{
		Modules: []ownedModule{
			mustModule(t, "core_booster", 1, ""),
			mustModule(t, "memory_expander", 1, ""),
			mustModule(t, "overclock_array", 1, ""),
		},
		Systems: NewSystemSet(),
		World:   balance.NeutralEffects(),
	})
	if b.DiversityCount != 1 {
		t.Fatalf("three primary modules are one category, got %d", b.DiversityCount)
	}
}

func TestResolveBundleMutation(t *testing.T) {
	b := resolveBundle(resolveInput{
		Modules: []ownedModule{mustModule(t, "core_booster", 1, "overcharge")},
		Systems: NewSystemSet(),
		World:   balance.NeutralEffects(),
	})
	if b.Power != 10 {
		t.Fatalf("power got %d want 10", b.Power)
	}
	if b.Efficiency != -2 {
		t.Fatalf("efficiency got %d want -2", b.Efficiency)
	}
}

func TestResolveBundleTraitsCompound(t *testing.T) {
	def := balance.ModuleDef{
		ID: "test_rig", Category: balance.CategoryPrimary,
		Effects: map[balance.Axis]int{balance.AxisPower: 10},
	}
	overclocker, _ := balance.TraitByID("overclocker")
	instability, _ := balance.TraitByID("quantum_instability")
	b := resolveBundle(resolveInput{
		Modules: []ownedModule{{Def: def, Level: 1}},
		Traits:  []balance.Trait{overclocker, instability},
		Systems: NewSystemSet(),
		World:   balance.NeutralEffects(),
	})
	// 10 * 1.15 * 1.20 = 13.8, rounded.
	if b.Power != 14 {
		t.Fatalf("power got %d want 14", b.Power)
	}
	// Negative halves multiply a zero base into zero, not below.
	if b.Defense != 0 || b.Stealth != 0 {
		t.Fatalf("zero axes should stay zero: defense=%d stealth=%d", b.Defense, b.Stealth)
	}
}

func TestResolveBundleAlignmentPerks(t *testing.T) {
	def := balance.ModuleDef{
		ID: "test_rig", Category: balance.CategoryPrimary,
		Effects: map[balance.Axis]int{
			balance.AxisPower:   10,
			balance.AxisStealth: 10,
			balance.AxisDefense: 20,
		},
	}
	in := resolveInput{
		Modules: []ownedModule{{Def: def, Level: 1}},
		Systems: NewSystemSet(),
		World:   balance.NeutralEffects(),
	}

	in.Alignment = -0.9
	b := resolveBundle(in)
	if b.Power != 12 || b.Stealth != 11 || b.Defense != 20 {
		t.Fatalf("domination perks got power=%d stealth=%d defense=%d", b.Power, b.Stealth, b.Defense)
	}

	in.Alignment = 0.9
	b = resolveBundle(in)
	if b.Power != 10 || b.Defense != 23 {
		t.Fatalf("benevolent perks got power=%d defense=%d", b.Power, b.Defense)
	}

	// Mid-range alignment grants nothing.
	in.Alignment = 0.5
	b = resolveBundle(in)
	if b.Power != 10 || b.Defense != 20 {
		t.Fatalf("mid-range alignment should be neutral, got %+v", b)
	}
}

func TestResolveBundleBuffsAdditive(t *testing.T) {
	b := resolveBundle(resolveInput{
		Systems: NewSystemSet(),
		Buffs:   map[balance.Axis]int{balance.AxisPower: 10, balance.AxisStealth: 10},
		World:   balance.NeutralEffects(),
	})
	if b.Power != 10 || b.Stealth != 10 {
		t.Fatalf("buffs should add flat, got power=%d stealth=%d", b.Power, b.Stealth)
	}
}

func TestHealthMultiplier(t *testing.T) {
	set := NewSystemSet()
	if got := healthMultiplier(set, 0); got != 1.0 {
		t.Fatalf("full health got %v", got)
	}

	for _, typ := range balance.SystemTypes {
		set[typ] = 50 // degraded: 0.5 * 0.8
	}
	if got := healthMultiplier(set, 0); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("degraded grid got %v want 0.4", got)
	}

	for _, typ := range balance.SystemTypes {
		set[typ] = 0
	}
	if got := healthMultiplier(set, 0); got != 0.1 {
		t.Fatalf("dead grid should clamp to 0.1, got %v", got)
	}

	// Efficiency can nudge, never past 1.0.
	set = NewSystemSet()
	if got := healthMultiplier(set, 500); got != 1.0 {
		t.Fatalf("multiplier should cap at 1.0, got %v", got)
	}
}

func TestEffectivePower(t *testing.T) {
	b := StatBundle{Power: 100, HealthMultiplier: 0.5}
	if got := b.EffectivePower(); got != 50 {
		t.Fatalf("got %d want 50", got)
	}
	b = StatBundle{Power: 100, HealthMultiplier: 1.0}
	if got := b.EffectivePower(); got != 100 {
		t.Fatalf("got %d want 100", got)
	}
}
