package balance

import "math"

// Infiltration tuning. Targets are procedurally generated marks whose
// security level drives reward, success odds and detection in lockstep, so
// riskier marks pay more and burn harder.

type TargetType string

var TargetTypes = []TargetType{
	"database",
	"government",
	"financial",
	"military",
	"corporate",
	"research",
	"infrastructure",
}

type RiskRating string

const (
	RiskLow      RiskRating = "low"
	RiskMedium   RiskRating = "medium"
	RiskHigh     RiskRating = "high"
	RiskCritical RiskRating = "critical"
)

func RiskRatingFor(securityLevel int) RiskRating {
	switch {
	case securityLevel < 30:
		return RiskLow
	case securityLevel < 55:
		return RiskMedium
	case securityLevel < 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

const (
	ScanTargetCount = 5
	ScanTTLSeconds  = 600

	TargetSecurityBase      = 14
	TargetSecuritySpread    = 12
	TargetSecurityLevelStep = 3
	TargetSecurityMax       = 95

	HackSuccessBase           = 58
	HackSuccessMin            = 22
	HackSuccessMax            = 95
	HackEarlyFloorBase        = 36
	HackEarlyFloorDropPerLvl  = 3
	HackEarlyFloorUntilLevel  = 4
	HighRiskSecurityThreshold = 65
	HighRiskProcPowerMin      = 1
	HighRiskProcPowerMax      = 2

	DetectionChanceMin = 5
	DetectionChanceMax = 95

	RogueMalwareNodeName = "Rogue Malware Node"
	RogueMalwareSecurity = 85

	HeatDecayPerTick = 1
)

// TargetRewards is the pre-bonus reward set one mark pays out.
type TargetRewards struct {
	Credits    int `json:"credits"`
	Data       int `json:"data"`
	Reputation int `json:"reputation"`
	XP         int `json:"xp"`
}

// TargetRewardFor is the base reward curve: linear in security level, floored
// per axis.
func TargetRewardFor(securityLevel int) TargetRewards {
	sec := float64(securityLevel)
	return TargetRewards{
		Credits:    int(9 + sec*0.95),
		Data:       int(5 + sec*0.58),
		Reputation: int(1 + sec*0.1),
		XP:         int(9 + sec*0.22),
	}
}

// hackSuccessFloor keeps early entities from bottoming out at the global
// minimum before they can afford modules.
func hackSuccessFloor(playerLevel int) int {
	if playerLevel > HackEarlyFloorUntilLevel {
		return HackSuccessMin
	}
	floor := HackEarlyFloorBase - (playerLevel-1)*HackEarlyFloorDropPerLvl
	if floor < HackSuccessMin {
		return HackSuccessMin
	}
	return floor
}

// HackSuccessChance is the percent chance a hack with the given effective
// power lands against a mark of the given security level.
func HackSuccessChance(power, securityLevel, playerLevel int) int {
	chance := HackSuccessBase + power - securityLevel
	if floor := hackSuccessFloor(playerLevel); chance < floor {
		chance = floor
	}
	if chance > HackSuccessMax {
		chance = HackSuccessMax
	}
	return chance
}

// ClampDetection bounds a detection percentage so no mark is ever a free
// pass or a guaranteed burn.
func ClampDetection(chance float64) int {
	v := int(math.Round(chance))
	if v < DetectionChanceMin {
		return DetectionChanceMin
	}
	if v > DetectionChanceMax {
		return DetectionChanceMax
	}
	return v
}

// HeatDamageTier is one rung of the detection escalation ladder.
type HeatDamageTier struct {
	MinDamage       int
	MaxDamage       int
	SystemsAffected int
}

var heatDamageTiers = []HeatDamageTier{
	{MinDamage: 5, MaxDamage: 10, SystemsAffected: 1},
	{MinDamage: 10, MaxDamage: 20, SystemsAffected: 2},
	{MinDamage: 20, MaxDamage: 40, SystemsAffected: 3},
}

// HeatDamageFor maps accumulated heat to the damage tier a fresh detection
// inflicts. The ladder saturates: every detection past the second hits at
// the top tier.
func HeatDamageFor(heatLevel int) HeatDamageTier {
	if heatLevel < 0 {
		heatLevel = 0
	}
	if heatLevel >= len(heatDamageTiers) {
		heatLevel = len(heatDamageTiers) - 1
	}
	return heatDamageTiers[heatLevel]
}
