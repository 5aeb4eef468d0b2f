package game

import (
	"math"

	"gridmind/internal/balance"
)

// SystemSet is the full six-subsystem health map keyed by type.
type SystemSet map[balance.SystemType]int

func NewSystemSet() SystemSet {
	s := make(SystemSet, len(balance.SystemTypes))
	for _, t := range balance.SystemTypes {
		s[t] = balance.MaxSystemHealth
	}
	return s
}

func (s SystemSet) Clone() SystemSet {
	out := make(SystemSet, len(s))
	for t, h := range s {
		out[t] = h
	}
	return out
}

// States returns the set in canonical order with derived statuses.
func (s SystemSet) States() []SystemState {
	out := make([]SystemState, 0, len(balance.SystemTypes))
	for _, t := range balance.SystemTypes {
		h := s[t]
		out = append(out, SystemState{Type: t, Health: h, Status: balance.StatusOf(h)})
	}
	return out
}

// CorruptedCount counts fully failed subsystems.
func (s SystemSet) CorruptedCount() int {
	n := 0
	for _, t := range balance.SystemTypes {
		if s[t] <= 0 {
			n++
		}
	}
	return n
}

// IsDead reports whether the corruption threshold for entity death is met.
func (s SystemSet) IsDead() bool {
	return s.CorruptedCount() >= balance.DeathCorruptedCount
}

// ApplyDecay lowers every non-corrupted subsystem by the ambient rate over
// the elapsed hours. Corrupted systems stay at zero; decay never revives or
// skips past zero. The mitigation factor scales the loss (guardian deploys
// pass 0.5, everyone else 1.0).
func (s SystemSet) ApplyDecay(hours, mitigation float64) {
	if hours <= 0 {
		return
	}
	loss := int(math.Round(balance.DegradationRatePerHour * hours * mitigation))
	if loss <= 0 {
		return
	}
	for _, t := range balance.SystemTypes {
		h := s[t]
		if h <= 0 {
			continue
		}
		h -= loss
		if h < 0 {
			h = 0
		}
		s[t] = h
	}
}

// ApplyCascade runs one cascade tick. Sources are systems strictly between
// zero and the critical threshold in the pre-tick snapshot; each source
// damages its adjacent systems simultaneously, so a system pushed below the
// threshold this tick does not radiate until the next one. Returns total
// damage dealt.
func (s SystemSet) ApplyCascade() int {
	snapshot := s.Clone()
	total := 0
	for _, src := range balance.SystemTypes {
		h := snapshot[src]
		if h <= 0 || h >= balance.CascadeThreshold {
			continue
		}
		for _, adj := range balance.SystemAdjacency[src] {
			cur := s[adj]
			if cur <= 0 {
				continue
			}
			cur -= balance.CascadeDamagePerTick
			if cur < 0 {
				cur = 0
			}
			total += s[adj] - cur
			s[adj] = cur
		}
	}
	return total
}

// ApplyDamage lowers one subsystem, flooring at zero, and returns the
// damage actually absorbed.
func (s SystemSet) ApplyDamage(t balance.SystemType, amount int) int {
	if amount <= 0 {
		return 0
	}
	cur := s[t]
	if cur <= 0 {
		return 0
	}
	next := cur - amount
	if next < 0 {
		next = 0
	}
	s[t] = next
	return cur - next
}

// Repair restores a fixed amount to one subsystem, capped at max health.
// Corrupted systems are repairable; repair is the only way back from zero.
func (s SystemSet) Repair(t balance.SystemType) int {
	cur := s[t]
	next := cur + balance.RepairHealthAmount
	if next > balance.MaxSystemHealth {
		next = balance.MaxSystemHealth
	}
	s[t] = next
	return next - cur
}
