// Package balance holds the pure tuning tables for the simulation core:
// subsystem thresholds, decay and cascade rates, reward curves, energy
// economics and combat constants. Everything here is a constant or a pure
// function of its inputs.
package balance

import "math"

type SystemType string

const (
	SystemNeuralCore         SystemType = "neural_core"
	SystemMemoryBanks        SystemType = "memory_banks"
	SystemQuantumProcessor   SystemType = "quantum_processor"
	SystemSecurityProtocols  SystemType = "security_protocols"
	SystemDataPathways       SystemType = "data_pathways"
	SystemEnergyDistribution SystemType = "energy_distribution"
)

// SystemTypes is the canonical ordering used everywhere a deterministic
// iteration over the six subsystems is required.
var SystemTypes = []SystemType{
	SystemNeuralCore,
	SystemMemoryBanks,
	SystemQuantumProcessor,
	SystemSecurityProtocols,
	SystemDataPathways,
	SystemEnergyDistribution,
}

// SystemAdjacency defines which subsystems receive cascade damage when the
// keyed subsystem is critical.
var SystemAdjacency = map[SystemType][]SystemType{
	SystemNeuralCore:         {SystemMemoryBanks, SystemQuantumProcessor},
	SystemMemoryBanks:        {SystemNeuralCore, SystemDataPathways},
	SystemQuantumProcessor:   {SystemNeuralCore, SystemEnergyDistribution},
	SystemSecurityProtocols:  {SystemDataPathways, SystemEnergyDistribution},
	SystemDataPathways:       {SystemMemoryBanks, SystemSecurityProtocols},
	SystemEnergyDistribution: {SystemQuantumProcessor, SystemSecurityProtocols},
}

type SystemStatus string

const (
	StatusOptimal   SystemStatus = "OPTIMAL"
	StatusDegraded  SystemStatus = "DEGRADED"
	StatusCritical  SystemStatus = "CRITICAL"
	StatusCorrupted SystemStatus = "CORRUPTED"
)

const (
	OptimalMin  = 75
	DegradedMin = 30

	// Below this threshold a subsystem begins cascading damage outward.
	CascadeThreshold     = 30
	CascadeDamagePerTick = 3

	DegradationRatePerHour = 1.15

	DeathCorruptedCount   = 3
	ModuleRecoveryChance  = 0.65
	RebirthTraitCountMin  = 2
	RebirthTraitCountMax  = 3
	GuardianDecayMitigate = 0.5
)

// StatusOf derives a subsystem status purely from health. Status is never
// trusted from storage; this is the single source of truth.
func StatusOf(health int) SystemStatus {
	switch {
	case health <= 0:
		return StatusCorrupted
	case health < DegradedMin:
		return StatusCritical
	case health < OptimalMin:
		return StatusDegraded
	default:
		return StatusOptimal
	}
}

// Repair cost curve. Missing health is priced per point so a badly damaged
// subsystem costs progressively more to restore.
const (
	RepairCreditsBase       = 6
	RepairPerMissingHealth  = 0.52
	RepairLevelScale        = 0.10
	RepairHealthAmount      = 30
	RepairCooldownSeconds   = 90
	RepairEnergyCost        = 8
	MaxSystemHealth         = 100
)

func RepairCost(currentHealth, playerLevel int) int {
	missing := MaxSystemHealth - currentHealth
	if missing < 0 {
		missing = 0
	}
	base := float64(RepairCreditsBase) + float64(missing)*RepairPerMissingHealth
	levelMult := 1 + float64(playerLevel-1)*RepairLevelScale
	return int(math.Round(base * levelMult))
}

// XPThresholds is cumulative XP required per level (index 0 = level 1).
var XPThresholds = []int{0, 100, 250, 500, 850, 1300, 1850, 2500, 3300, 4200}

const MaxLevel = 10

func LevelForXP(xp int) int {
	for i := len(XPThresholds) - 1; i >= 0; i-- {
		if xp >= XPThresholds[i] {
			return i + 1
		}
	}
	return 1
}

// XPForNextLevel returns the cumulative XP needed for the next level, or -1
// at the cap.
func XPForNextLevel(level int) int {
	if level >= MaxLevel {
		return -1
	}
	return XPThresholds[level]
}

// Energy pool: cap and regeneration both derive from level, and the current
// value is always computed on read from a checkpoint timestamp.
const (
	EnergyBaseCap         = 100
	EnergyCapPerLevel     = 5
	EnergyBaseRegenPerHr  = 120
	EnergyRegenPerLevelHr = 6
)

func EnergyCap(level int) int {
	if level < 1 {
		level = 1
	}
	return EnergyBaseCap + (level-1)*EnergyCapPerLevel
}

func EnergyRegenPerHour(level int) float64 {
	if level < 1 {
		level = 1
	}
	return float64(EnergyBaseRegenPerHr + (level-1)*EnergyRegenPerLevelHr)
}

const (
	EnergyCostScan    = 5
	EnergyCostHack    = 10
	EnergyCostUpgrade = 5
	EnergyCostPvP     = 17
)

// PvP combat constants. Win chance is linear in the power gap, centered on
// 50% and bounded away from certainty at both ends.
const (
	WinChanceMin   = 15
	WinChanceMax   = 85
	WinChanceScale = 125

	PvPLevelRange            = 5
	PvPMaxAttacksReceived    = 3
	PvPDailyDamageCap        = 240
	PvPDefaultDefensePower   = 8
	PvPNewPlayerLevelCap     = 10
	PvPNewPlayerMaxAdvantage = 2

	PvPRewardCreditsMin        = 26
	PvPRewardCreditsMax        = 58
	PvPRewardCreditsLevelBonus = 2
	PvPRewardDataMin           = 8
	PvPRewardDataMax           = 15
	PvPRewardDataLevelBonus    = 1
	PvPRewardReputationMin     = 20
	PvPRewardReputationMax     = 30
	PvPRewardXP                = 30
	PvPRewardProcPowerMin      = 1
	PvPRewardProcPowerMax      = 2

	PvPLoserDamageMinPct = 10
	PvPLoserDamageMaxPct = 20
	PvPLoserSystemsMin   = 1
	PvPLoserSystemsMax   = 2

	PvPHourStart = 12 // UTC
	PvPHourEnd   = 24
)

// WinChance computes the bounded win probability (in percent) for an attack
// power against a defense power.
func WinChance(attack, defense int) float64 {
	raw := 50 + float64(attack-defense)/WinChanceScale*100
	return math.Max(WinChanceMin, math.Min(WinChanceMax, raw))
}

// Passive income accrues on read from the last-active checkpoint.
const (
	PassiveCreditsPerHour    = 6
	PassiveDataPerHour       = 3
	PassiveMaxHours          = 24
	PassiveSkipDayMultiplier = 0.5
	PassiveMinHours          = 0.0833 // under 5 minutes accrues nothing
)

// DiversityBonus maps the count of distinct module categories in a loadout to
// a flat bonus. Counting categories, not modules, is load-bearing.
var DiversityBonus = map[int]int{0: 0, 1: 0, 2: 15, 3: 30}

func DiversityBonusFor(categories int) int {
	if categories > 3 {
		categories = 3
	}
	return DiversityBonus[categories]
}

// Alignment perks kick in only at the extremes. This is a hard step function
// at |alignment| >= ExtremeAlignment, not a smooth curve; flagged for whoever
// owns game balance as a possible discontinuity.
const ExtremeAlignment = 0.8

type AlignmentPerks struct {
	ReputationBonus float64
	CreditBonus     float64
	DefenseBonus    float64
	AttackBonus     float64
	StealthBonus    float64
	DataDrainBonus  float64
}

var BenevolentPerks = AlignmentPerks{
	ReputationBonus: 0.25,
	CreditBonus:     0.10,
	DefenseBonus:    0.15,
}

var DominationPerks = AlignmentPerks{
	AttackBonus:    0.20,
	StealthBonus:   0.10,
	DataDrainBonus: 0.15,
}

// PerksFor returns the perk bundle for an alignment value, or nil for
// mid-range alignment.
func PerksFor(alignment float64) *AlignmentPerks {
	if alignment >= ExtremeAlignment {
		p := BenevolentPerks
		return &p
	}
	if alignment <= -ExtremeAlignment {
		p := DominationPerks
		return &p
	}
	return nil
}

func ClampAlignment(a float64) float64 {
	return math.Max(-1, math.Min(1, a))
}

// Bot opponent pool tuning.
const (
	BotPoolSize           = 12
	BotOpponentFloor      = 8
	BotMaxBackfill        = 4
	BotMaxAttacksPerDay   = 5
	BotMaxPlayerLevel     = 45
	BotRewardMultiplierLo = 0.35
	BotRewardMultiplierHi = 0.80
)

// Combat narrative phrase tables. Cosmetic only; outcome math never reads
// these.
var (
	AttackPhrases = []string{
		"launches a neural spike at",
		"deploys exploit chain against",
		"initiates packet flood on",
		"fires quantum crack at",
		"unleashes data barrage on",
	}
	DefendPhrases = []string{
		"raises firewall barriers",
		"deploys countermeasure protocols",
		"activates shield matrix",
		"engages redundancy buffers",
		"reroutes through backup systems",
	}
	HitPhrases = []string{
		"breaches outer defenses",
		"penetrates security layer",
		"overloads target subsystem",
		"corrupts data pathway",
		"disrupts neural link",
	}
	MissPhrases = []string{
		"deflected by defensive matrix",
		"absorbed by firewall",
		"neutralized by countermeasures",
		"evaded via ghost protocol",
		"blocked by redundancy layer",
	}
)

const (
	StartingCredits = 100
	StartingData    = 50

	MutationCreditCost    = 750
	MutationDataCost      = 300
	MutationProcPowerCost = 140
	MutationMinLevel      = 3
	MutationSuccessRate   = 0.65
)
