package game

import (
	"testing"

	"gridmind/internal/balance"
)

func TestNewSystemSet(t *testing.T) {
	set := NewSystemSet()
	if len(set) != len(balance.SystemTypes) {
		t.Fatalf("expected %d systems, got %d", len(balance.SystemTypes), len(set))
	}
	for _, st := range set.States() {
		if st.Health != balance.MaxSystemHealth || st.Status != balance.StatusOptimal {
			t.Fatalf("fresh system %s not optimal: %+v", st.Type, st)
		}
	}
}

func TestApplyDecay(t *testing.T) {
	set := NewSystemSet()
	set.ApplyDecay(2, 1)
	// round(1.15 * 2) = 2 off every subsystem
	for _, typ := range balance.SystemTypes {
		if set[typ] != 98 {
			t.Fatalf("%s got %d want 98", typ, set[typ])
		}
	}

	// Guardian mitigation halves the loss.
	set = NewSystemSet()
	set.ApplyDecay(2, balance.GuardianDecayMitigate)
	if set[balance.SystemNeuralCore] != 99 {
		t.Fatalf("mitigated decay got %d want 99", set[balance.SystemNeuralCore])
	}

	// Sub-rounding windows cost nothing.
	set = NewSystemSet()
	set.ApplyDecay(0.1, 1)
	if set[balance.SystemNeuralCore] != 100 {
		t.Fatalf("tiny window should not decay, got %d", set[balance.SystemNeuralCore])
	}
}

func TestApplyDecaySkipsCorruptedAndFloors(t *testing.T) {
	set := NewSystemSet()
	set[balance.SystemMemoryBanks] = 0
	set[balance.SystemDataPathways] = 1
	set.ApplyDecay(100, 1)

	if set[balance.SystemMemoryBanks] != 0 {
		t.Fatalf("corrupted system should stay at zero, got %d", set[balance.SystemMemoryBanks])
	}
	if set[balance.SystemDataPathways] != 0 {
		t.Fatalf("decay should floor at zero, got %d", set[balance.SystemDataPathways])
	}
	if set[balance.SystemNeuralCore] < 0 {
		t.Fatalf("health went negative: %d", set[balance.SystemNeuralCore])
	}
}

func TestApplyCascade(t *testing.T) {
	set := NewSystemSet()
	set[balance.SystemNeuralCore] = 20 // critical, radiates

	total := set.ApplyCascade()
	if total != 2*balance.CascadeDamagePerTick {
		t.Fatalf("total damage got %d want %d", total, 2*balance.CascadeDamagePerTick)
	}
	if set[balance.SystemMemoryBanks] != 97 || set[balance.SystemQuantumProcessor] != 97 {
		t.Fatalf("adjacent systems should take %d each: memory=%d quantum=%d",
			balance.CascadeDamagePerTick, set[balance.SystemMemoryBanks], set[balance.SystemQuantumProcessor])
	}
	// Non-adjacent systems are untouched.
	if set[balance.SystemSecurityProtocols] != 100 {
		t.Fatalf("non-adjacent system damaged: %d", set[balance.SystemSecurityProtocols])
	}
	// The source itself is not self-damaged.
	if set[balance.SystemNeuralCore] != 20 {
		t.Fatalf("cascade source changed: %d", set[balance.SystemNeuralCore])
	}
}

func TestApplyCascadeUsesPreTickSnapshot(t *testing.T) {
	set := NewSystemSet()
	set[balance.SystemNeuralCore] = 20
	set[balance.SystemMemoryBanks] = 31 // just above the threshold before the tick

	set.ApplyCascade()

	// memory_banks drops to 28 this tick but must not radiate until the
	// next one, so its neighbors other than the core are untouched.
	if set[balance.SystemMemoryBanks] != 28 {
		t.Fatalf("memory_banks got %d want 28", set[balance.SystemMemoryBanks])
	}
	if set[balance.SystemDataPathways] != 100 {
		t.Fatalf("newly critical system radiated within the same tick: %d", set[balance.SystemDataPathways])
	}
}

func TestApplyCascadeCorruptedEndpoints(t *testing.T) {
	set := NewSystemSet()
	set[balance.SystemNeuralCore] = 0   // corrupted, must not radiate
	set[balance.SystemMemoryBanks] = 10 // radiates into neural_core and data_pathways

	total := set.ApplyCascade()

	if set[balance.SystemQuantumProcessor] != 100 {
		t.Fatalf("corrupted source radiated: %d", set[balance.SystemQuantumProcessor])
	}
	// Corrupted targets absorb nothing and stay at zero.
	if set[balance.SystemNeuralCore] != 0 {
		t.Fatalf("corrupted target changed: %d", set[balance.SystemNeuralCore])
	}
	if total != balance.CascadeDamagePerTick {
		t.Fatalf("only data_pathways should absorb damage, total=%d", total)
	}
}

func TestApplyCascadeFloorsAtZero(t *testing.T) {
	set := NewSystemSet()
	set[balance.SystemNeuralCore] = 10
	set[balance.SystemMemoryBanks] = 2

	total := set.ApplyCascade()
	if set[balance.SystemMemoryBanks] != 0 {
		t.Fatalf("expected floor at zero, got %d", set[balance.SystemMemoryBanks])
	}
	// Both are sources. neural_core deals 2 (floored) + 3; memory_banks
	// deals 3 back to the core and 3 to data_pathways.
	if total != 11 {
		t.Fatalf("total got %d want 11", total)
	}
	if set[balance.SystemNeuralCore] != 7 {
		t.Fatalf("neural_core got %d want 7", set[balance.SystemNeuralCore])
	}
}

func TestIsDead(t *testing.T) {
	set := NewSystemSet()
	set[balance.SystemNeuralCore] = 0
	set[balance.SystemMemoryBanks] = 0
	if set.IsDead() {
		t.Fatalf("two corrupted systems should not be fatal")
	}
	set[balance.SystemDataPathways] = 0
	if !set.IsDead() {
		t.Fatalf("three corrupted systems should be fatal")
	}
	if set.CorruptedCount() != 3 {
		t.Fatalf("corrupted count got %d", set.CorruptedCount())
	}
}

func TestApplyDamage(t *testing.T) {
	set := NewSystemSet()
	if got := set.ApplyDamage(balance.SystemNeuralCore, 30); got != 30 {
		t.Fatalf("absorbed got %d want 30", got)
	}
	if got := set.ApplyDamage(balance.SystemNeuralCore, 200); got != 70 {
		t.Fatalf("overkill should absorb remaining 70, got %d", got)
	}
	if got := set.ApplyDamage(balance.SystemNeuralCore, 10); got != 0 {
		t.Fatalf("corrupted system absorbs nothing, got %d", got)
	}
	if got := set.ApplyDamage(balance.SystemMemoryBanks, -5); got != 0 {
		t.Fatalf("non-positive damage is a no-op, got %d", got)
	}
}

func TestRepair(t *testing.T) {
	set := NewSystemSet()
	set[balance.SystemNeuralCore] = 40
	if got := set.Repair(balance.SystemNeuralCore); got != balance.RepairHealthAmount {
		t.Fatalf("restored got %d want %d", got, balance.RepairHealthAmount)
	}
	if set[balance.SystemNeuralCore] != 70 {
		t.Fatalf("health got %d want 70", set[balance.SystemNeuralCore])
	}

	set[balance.SystemNeuralCore] = 90
	if got := set.Repair(balance.SystemNeuralCore); got != 10 {
		t.Fatalf("capped repair should restore 10, got %d", got)
	}

	// Repair is the road back from corruption.
	set[balance.SystemNeuralCore] = 0
	set.Repair(balance.SystemNeuralCore)
	if balance.StatusOf(set[balance.SystemNeuralCore]) == balance.StatusCorrupted {
		t.Fatalf("repaired system still corrupted at %d", set[balance.SystemNeuralCore])
	}
}
