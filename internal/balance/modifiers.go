package balance

import "math/rand"

// Effects is the process-wide multiplicative effect set chosen once per day.
// A zero value is meaningless; use NeutralEffects for the all-ones default.
type Effects struct {
	EnergyCost      float64 `json:"energy_cost"`
	HackReward      float64 `json:"hack_reward"`
	DegradationRate float64 `json:"degradation_rate"`
	RepairCost      float64 `json:"repair_cost"`
	PassiveIncome   float64 `json:"passive_income"`
	Detection       float64 `json:"detection"`
	XPGain          float64 `json:"xp_gain"`
	HeatDecay       float64 `json:"heat_decay"`
}

func NeutralEffects() Effects {
	return Effects{
		EnergyCost:      1,
		HackReward:      1,
		DegradationRate: 1,
		RepairCost:      1,
		PassiveIncome:   1,
		Detection:       1,
		XPGain:          1,
		HeatDecay:       1,
	}
}

type ModifierSeverity string

const (
	SeverityMinor ModifierSeverity = "minor"
	SeverityMajor ModifierSeverity = "major"
)

type Modifier struct {
	ID          string
	Name        string
	Description string
	Severity    ModifierSeverity
	Apply       func(*Effects)
}

var modifierPool = []Modifier{
	{ID: "power_surge", Name: "Power Surge", Severity: SeverityMinor,
		Description: "Grid fluctuations reduce energy costs.",
		Apply:       func(e *Effects) { e.EnergyCost = 0.85 }},
	{ID: "data_bloom", Name: "Data Bloom", Severity: SeverityMinor,
		Description: "Network overflow increases hack rewards.",
		Apply:       func(e *Effects) { e.HackReward = 1.15 }},
	{ID: "entropy_wave", Name: "Entropy Wave", Severity: SeverityMinor,
		Description: "Background noise accelerates system degradation.",
		Apply:       func(e *Effects) { e.DegradationRate = 1.25 }},
	{ID: "market_dip", Name: "Market Dip", Severity: SeverityMinor,
		Description: "Repair parts are cheaper on the black market.",
		Apply:       func(e *Effects) { e.RepairCost = 0.75 }},
	{ID: "signal_boost", Name: "Signal Boost", Severity: SeverityMinor,
		Description: "Strong signals increase passive income.",
		Apply:       func(e *Effects) { e.PassiveIncome = 1.2 }},
	{ID: "stealth_fog", Name: "Stealth Fog", Severity: SeverityMinor,
		Description: "Atmospheric interference lowers detection chance.",
		Apply:       func(e *Effects) { e.Detection = 0.8 }},
	{ID: "system_overload", Name: "System Overload", Severity: SeverityMajor,
		Description: "Infrastructure strain boosts degradation and XP.",
		Apply:       func(e *Effects) { e.DegradationRate = 1.5; e.XPGain = 1.75 }},
	{ID: "blackout_protocol", Name: "Blackout Protocol", Severity: SeverityMajor,
		Description: "Emergency conservation. More energy cost, less detection.",
		Apply:       func(e *Effects) { e.EnergyCost = 1.3; e.Detection = 0.5 }},
	{ID: "harvest_moon", Name: "Harvest Moon", Severity: SeverityMajor,
		Description: "Maximum extraction window. Everything pays more.",
		Apply:       func(e *Effects) { e.HackReward = 1.25; e.PassiveIncome = 1.2; e.DegradationRate = 1.3 }},
	{ID: "corrosion_storm", Name: "Corrosion Storm", Severity: SeverityMajor,
		Description: "Severe environment damage. Repairs cost more, heat decays faster.",
		Apply:       func(e *Effects) { e.DegradationRate = 1.75; e.RepairCost = 1.5; e.HeatDecay = 2.0 }},
	{ID: "neural_resonance", Name: "Neural Resonance", Severity: SeverityMajor,
		Description: "Alignment event. XP and passive income surge.",
		Apply:       func(e *Effects) { e.XPGain = 1.5; e.PassiveIncome = 1.2; e.EnergyCost = 1.15 }},
}

var (
	minorModifiers []Modifier
	majorModifiers []Modifier
	modifierIndex  = map[string]Modifier{}
)

func init() {
	for _, m := range modifierPool {
		modifierIndex[m.ID] = m
		if m.Severity == SeverityMinor {
			minorModifiers = append(minorModifiers, m)
		} else {
			majorModifiers = append(majorModifiers, m)
		}
	}
}

func ModifierByID(id string) (Modifier, bool) {
	m, ok := modifierIndex[id]
	return m, ok
}

// EffectsForModifier resolves a modifier id into a full effect set on a
// neutral base. Unknown ids yield the neutral set.
func EffectsForModifier(id string) Effects {
	e := NeutralEffects()
	if m, ok := modifierIndex[id]; ok {
		m.Apply(&e)
	}
	return e
}

// PickDailyModifier draws today's modifier: 5/7 minor, 2/7 major.
func PickDailyModifier(r *rand.Rand) Modifier {
	pool := minorModifiers
	if r.Float64() >= 5.0/7.0 {
		pool = majorModifiers
	}
	return pool[r.Intn(len(pool))]
}

// Weekly topology: one boosted and one hindered node chosen per week, each
// applying a multiplier on top of the daily effects.
type TopologyNode string

var TopologyNodes = []TopologyNode{
	"darknet_exchange",
	"corporate_backbone",
	"orbital_relay",
	"abandoned_gridworks",
	"research_enclave",
}

type TopologyEffect struct {
	Name  string  `json:"name"`
	Axis  string  `json:"axis"` // effect field name, e.g. "hack_reward"
	Value float64 `json:"value"`
}

var BoostEffects = []TopologyEffect{
	{Name: "reward surge", Axis: "hack_reward", Value: 1.2},
	{Name: "income stream", Axis: "passive_income", Value: 1.25},
	{Name: "cheap repairs", Axis: "repair_cost", Value: 0.8},
}

var HindranceEffects = []TopologyEffect{
	{Name: "corrosive links", Axis: "degradation_rate", Value: 1.3},
	{Name: "watchful ice", Axis: "detection", Value: 1.25},
	{Name: "power drain", Axis: "energy_cost", Value: 1.2},
}

const RogueMalwareChance = 0.3

// ApplyTopologyEffect folds one topology effect into a daily effect set.
func ApplyTopologyEffect(e Effects, t TopologyEffect) Effects {
	switch t.Axis {
	case "hack_reward":
		e.HackReward *= t.Value
	case "passive_income":
		e.PassiveIncome *= t.Value
	case "repair_cost":
		e.RepairCost *= t.Value
	case "degradation_rate":
		e.DegradationRate *= t.Value
	case "detection":
		e.Detection *= t.Value
	case "energy_cost":
		e.EnergyCost *= t.Value
	}
	return e
}
