package game

import (
	"time"

	"gridmind/internal/balance"
)

type LoadoutPurpose string

const (
	LoadoutInfiltration LoadoutPurpose = "infiltration"
	LoadoutAttack       LoadoutPurpose = "attack"
	LoadoutDefense      LoadoutPurpose = "defense"
)

func ValidLoadoutPurpose(p LoadoutPurpose) bool {
	switch p {
	case LoadoutInfiltration, LoadoutAttack, LoadoutDefense:
		return true
	}
	return false
}

const LoadoutSlots = 3

// StatBundle is the fully resolved, request-time stat set for one loadout.
// The health multiplier is carried separately because call sites apply it
// differently: combat power uses it, reward math does not.
type StatBundle struct {
	Power       int `json:"power"`
	Stealth     int `json:"stealth"`
	Defense     int `json:"defense"`
	Efficiency  int `json:"efficiency"`
	CreditBonus int `json:"credit_bonus"`
	DataBonus   int `json:"data_bonus"`

	HealthMultiplier float64         `json:"health_multiplier"`
	DiversityCount   int             `json:"diversity_count"`
	World            balance.Effects `json:"world_effects"`
}

func (b StatBundle) axis(a balance.Axis) int {
	switch a {
	case balance.AxisPower:
		return b.Power
	case balance.AxisStealth:
		return b.Stealth
	case balance.AxisDefense:
		return b.Defense
	case balance.AxisEfficiency:
		return b.Efficiency
	case balance.AxisCreditBonus:
		return b.CreditBonus
	case balance.AxisDataBonus:
		return b.DataBonus
	}
	return 0
}

func (b *StatBundle) setAxis(a balance.Axis, v int) {
	switch a {
	case balance.AxisPower:
		b.Power = v
	case balance.AxisStealth:
		b.Stealth = v
	case balance.AxisDefense:
		b.Defense = v
	case balance.AxisEfficiency:
		b.Efficiency = v
	case balance.AxisCreditBonus:
		b.CreditBonus = v
	case balance.AxisDataBonus:
		b.DataBonus = v
	}
}

func (b *StatBundle) addAxis(a balance.Axis, v int) {
	b.setAxis(a, b.axis(a)+v)
}

// SystemState is one subsystem with its stored health and derived status.
type SystemState struct {
	Type   balance.SystemType   `json:"type"`
	Health int                  `json:"health"`
	Status balance.SystemStatus `json:"status"`
}

// PlayerState mirrors the players row with energy computed at read time.
type PlayerState struct {
	ID              string    `json:"id"`
	WalletAddress   string    `json:"wallet_address"`
	AIName          string    `json:"ai_name"`
	Level           int       `json:"level"`
	XP              int       `json:"xp"`
	Credits         int       `json:"credits"`
	Data            int       `json:"data"`
	ProcessingPower int       `json:"processing_power"`
	Reputation      int       `json:"reputation"`
	Energy          int       `json:"energy"`
	EnergyCap       int       `json:"energy_cap"`
	Alignment       float64   `json:"alignment"`
	HeatLevel       int       `json:"heat_level"`
	IsAlive         bool      `json:"is_alive"`
	InArena         bool      `json:"in_arena"`
	LastActiveAt    time.Time `json:"last_active_at"`
}

// Opponent is one arena listing entry, human or synthetic.
type Opponent struct {
	ID         string  `json:"id"`
	AIName     string  `json:"ai_name"`
	Level      int     `json:"level"`
	Reputation int     `json:"reputation"`
	Playstyle  string  `json:"playstyle"`
	Alignment  float64 `json:"alignment"`
	IsBot      bool    `json:"is_bot"`
	BotTier    BotTier `json:"bot_tier,omitempty"`
}

type CombatResult string

const (
	ResultAttackerWin CombatResult = "attacker_win"
	ResultDefenderWin CombatResult = "defender_win"
)

type Rewards struct {
	Credits         int `json:"credits"`
	Data            int `json:"data"`
	Reputation      int `json:"reputation"`
	XP              int `json:"xp"`
	ProcessingPower int `json:"processing_power"`
}

type SystemDamage struct {
	System balance.SystemType `json:"system"`
	Damage int                `json:"damage"`
}

// RoundDetail is one synthetic exchange attached to a combat record.
type RoundDetail struct {
	Round          int                `json:"round"`
	AttackerAction string             `json:"attacker_action"`
	DefenderAction string             `json:"defender_action"`
	Damage         int                `json:"damage"`
	TargetSystem   balance.SystemType `json:"target_system"`
	Description    string             `json:"description"`
}

// CombatOutcome is immutable once produced.
type CombatOutcome struct {
	Result    CombatResult   `json:"result"`
	Narrative []string       `json:"narrative"`
	Rewards   *Rewards       `json:"rewards,omitempty"`
	Damage    []SystemDamage `json:"damage,omitempty"`
	Rounds    []RoundDetail  `json:"rounds"`
	WinChance float64        `json:"win_chance"`
}

// PassiveIncome is what one materialization granted.
type PassiveIncome struct {
	Credits int `json:"credits"`
	Data    int `json:"data"`
}

// Carryover is the partial continuity recorded at death and consumed at
// the next registration for the same wallet.
type Carryover struct {
	GuaranteedModuleID string         `json:"guaranteed_module_id"`
	GuaranteedLevel    int            `json:"guaranteed_level"`
	RecoveredModules   map[string]int `json:"recovered_modules"`
	DeathsCount        int            `json:"deaths_count"`
}

// RebirthGrant reports what a consumed carryover turned into.
type RebirthGrant struct {
	Modules  map[string]int `json:"modules"`
	TraitIDs []string       `json:"trait_ids"`
}
