package balance

// Axis names the stat axes a module, trait or buff can contribute to.
type Axis string

const (
	AxisPower       Axis = "power"
	AxisStealth     Axis = "stealth"
	AxisDefense     Axis = "defense"
	AxisEfficiency  Axis = "efficiency"
	AxisCreditBonus Axis = "credit_bonus"
	AxisDataBonus   Axis = "data_bonus"
)

var Axes = []Axis{AxisPower, AxisStealth, AxisDefense, AxisEfficiency, AxisCreditBonus, AxisDataBonus}

func ValidAxis(a Axis) bool {
	for _, ax := range Axes {
		if a == ax {
			return true
		}
	}
	return false
}

type ModuleCategory string

const (
	CategoryPrimary   ModuleCategory = "primary"
	CategorySecondary ModuleCategory = "secondary"
	CategoryRelay     ModuleCategory = "relay"
	CategoryBackup    ModuleCategory = "backup"
)

type ModuleTier string

const (
	TierBasic    ModuleTier = "basic"
	TierAdvanced ModuleTier = "advanced"
	TierElite    ModuleTier = "elite"
)

const MaxModuleLevel = 5

// ModuleDef is one purchasable module. Effects are per-level additive
// contributions to stat axes.
type ModuleDef struct {
	ID       string
	Name     string
	Category ModuleCategory
	Tier     ModuleTier
	BaseCost int
	Effects  map[Axis]int
}

var Modules = []ModuleDef{
	{ID: "core_booster", Name: "Core Booster", Category: CategoryPrimary, Tier: TierBasic, BaseCost: 80,
		Effects: map[Axis]int{AxisPower: 4}},
	{ID: "memory_expander", Name: "Memory Expander", Category: CategoryPrimary, Tier: TierBasic, BaseCost: 90,
		Effects: map[Axis]int{AxisPower: 2, AxisEfficiency: 2}},
	{ID: "overclock_array", Name: "Overclock Array", Category: CategoryPrimary, Tier: TierAdvanced, BaseCost: 240,
		Effects: map[Axis]int{AxisPower: 7, AxisEfficiency: -1}},
	{ID: "singularity_core", Name: "Singularity Core", Category: CategoryPrimary, Tier: TierElite, BaseCost: 620,
		Effects: map[Axis]int{AxisPower: 11}},

	{ID: "data_miner", Name: "Data Miner", Category: CategorySecondary, Tier: TierBasic, BaseCost: 75,
		Effects: map[Axis]int{AxisDataBonus: 3, AxisCreditBonus: 1}},
	{ID: "crypto_skimmer", Name: "Crypto Skimmer", Category: CategorySecondary, Tier: TierAdvanced, BaseCost: 230,
		Effects: map[Axis]int{AxisCreditBonus: 4, AxisDataBonus: 2}},
	{ID: "harvest_engine", Name: "Harvest Engine", Category: CategorySecondary, Tier: TierElite, BaseCost: 600,
		Effects: map[Axis]int{AxisCreditBonus: 6, AxisDataBonus: 5}},

	{ID: "signal_router", Name: "Signal Router", Category: CategoryRelay, Tier: TierBasic, BaseCost: 70,
		Effects: map[Axis]int{AxisStealth: 4}},
	{ID: "mesh_cloak", Name: "Mesh Cloak", Category: CategoryRelay, Tier: TierAdvanced, BaseCost: 220,
		Effects: map[Axis]int{AxisStealth: 6, AxisEfficiency: 1}},
	{ID: "ghost_lattice", Name: "Ghost Lattice", Category: CategoryRelay, Tier: TierElite, BaseCost: 590,
		Effects: map[Axis]int{AxisStealth: 9, AxisPower: 2}},

	{ID: "redundancy_cell", Name: "Redundancy Cell", Category: CategoryBackup, Tier: TierBasic, BaseCost: 85,
		Effects: map[Axis]int{AxisDefense: 4}},
	{ID: "integrity_vault", Name: "Integrity Vault", Category: CategoryBackup, Tier: TierAdvanced, BaseCost: 250,
		Effects: map[Axis]int{AxisDefense: 6, AxisEfficiency: 1}},
	{ID: "aegis_firewall", Name: "Aegis Firewall", Category: CategoryBackup, Tier: TierElite, BaseCost: 640,
		Effects: map[Axis]int{AxisDefense: 10, AxisStealth: 1}},
}

var moduleIndex = func() map[string]ModuleDef {
	m := make(map[string]ModuleDef, len(Modules))
	for _, def := range Modules {
		m[def.ID] = def
	}
	return m
}()

func ModuleByID(id string) (ModuleDef, bool) {
	def, ok := moduleIndex[id]
	return def, ok
}

// StatMod is one half of a trait: an axis and a fractional modifier.
type StatMod struct {
	Axis     Axis
	Modifier float64
}

// Trait is a permanent rebirth-granted multiplier pair. Traits are never
// removed once granted.
type Trait struct {
	ID       string
	Name     string
	Positive StatMod
	Negative StatMod
}

var Traits = []Trait{
	{ID: "overclocker", Name: "Overclocker",
		Positive: StatMod{AxisPower, 0.15}, Negative: StatMod{AxisDefense, -0.10}},
	{ID: "ghost_protocol", Name: "Ghost Protocol",
		Positive: StatMod{AxisStealth, 0.20}, Negative: StatMod{AxisPower, -0.10}},
	{ID: "hardened_core", Name: "Hardened Core",
		Positive: StatMod{AxisDefense, 0.20}, Negative: StatMod{AxisEfficiency, -0.15}},
	{ID: "data_siphon", Name: "Data Siphon",
		Positive: StatMod{AxisCreditBonus, 0.15}, Negative: StatMod{AxisStealth, -0.10}},
	{ID: "neural_plasticity", Name: "Neural Plasticity",
		Positive: StatMod{AxisDataBonus, 0.15}, Negative: StatMod{AxisDefense, -0.10}},
	{ID: "rapid_adaptor", Name: "Rapid Adaptor",
		Positive: StatMod{AxisEfficiency, 0.20}, Negative: StatMod{AxisPower, -0.10}},
	{ID: "quantum_instability", Name: "Quantum Instability",
		Positive: StatMod{AxisPower, 0.20}, Negative: StatMod{AxisStealth, -0.15}},
	{ID: "echo_resonance", Name: "Echo Resonance",
		Positive: StatMod{AxisDataBonus, 0.12}, Negative: StatMod{AxisCreditBonus, -0.10}},
}

var traitIndex = func() map[string]Trait {
	m := make(map[string]Trait, len(Traits))
	for _, t := range Traits {
		m[t.ID] = t
	}
	return m
}()

func TraitByID(id string) (Trait, bool) {
	t, ok := traitIndex[id]
	return t, ok
}

// MutationVariant adds permanent flat bonus effects to a module.
type MutationVariant struct {
	ID      string
	Name    string
	Effects map[Axis]int
}

var MutationVariants = []MutationVariant{
	{ID: "echo", Name: "Echo", Effects: map[Axis]int{AxisPower: 3, AxisCreditBonus: 2}},
	{ID: "ghost", Name: "Ghost", Effects: map[Axis]int{AxisStealth: 5, AxisDataBonus: 2}},
	{ID: "overcharge", Name: "Overcharge", Effects: map[Axis]int{AxisPower: 6, AxisEfficiency: -2}},
	{ID: "adaptive", Name: "Adaptive", Effects: map[Axis]int{AxisDefense: 3, AxisPower: 2, AxisStealth: 2}},
}

var mutationIndex = func() map[string]MutationVariant {
	m := make(map[string]MutationVariant, len(MutationVariants))
	for _, v := range MutationVariants {
		m[v.ID] = v
	}
	return m
}()

func MutationByID(id string) (MutationVariant, bool) {
	v, ok := mutationIndex[id]
	return v, ok
}

// ModuleCost returns the credit cost to buy a module or raise it to the given
// level. Upgrades get steeper per level.
func ModuleCost(def ModuleDef, level int) int {
	if level <= 1 {
		return def.BaseCost
	}
	cost := def.BaseCost
	for i := 2; i <= level; i++ {
		cost = cost * 3 / 2
	}
	return cost
}
