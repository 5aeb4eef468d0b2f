package game

import (
	"testing"
	"time"

	"gridmind/internal/balance"
)

var passiveEpoch = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func TestComputeEnergy(t *testing.T) {
	// 30 minutes at level 1 regenerates floor(120 * 0.5) = 60.
	got := computeEnergy(20, passiveEpoch, passiveEpoch.Add(30*time.Minute), 1)
	if got != 80 {
		t.Fatalf("got %d want 80", got)
	}

	// Regen caps at the level cap.
	got = computeEnergy(90, passiveEpoch, passiveEpoch.Add(time.Hour), 1)
	if got != balance.EnergyCap(1) {
		t.Fatalf("got %d want cap %d", got, balance.EnergyCap(1))
	}

	// Already at or above cap reads back as the cap.
	got = computeEnergy(150, passiveEpoch, passiveEpoch, 1)
	if got != balance.EnergyCap(1) {
		t.Fatalf("overfull got %d want %d", got, balance.EnergyCap(1))
	}

	// A checkpoint in the future never drains.
	got = computeEnergy(40, passiveEpoch.Add(time.Hour), passiveEpoch, 1)
	if got != 40 {
		t.Fatalf("future checkpoint got %d want 40", got)
	}

	// Higher levels have a higher cap and faster regen.
	got = computeEnergy(0, passiveEpoch, passiveEpoch.Add(time.Hour), 10)
	if got != balance.EnergyCap(10) {
		t.Fatalf("level 10 hour got %d want %d", got, balance.EnergyCap(10))
	}
}

func TestPassiveAccrual(t *testing.T) {
	neutral := balance.NeutralEffects()

	// Under five minutes accrues nothing.
	got := passiveAccrual(passiveEpoch, passiveEpoch.Add(4*time.Minute), neutral)
	if got.Credits != 0 || got.Data != 0 {
		t.Fatalf("sub-threshold window paid out: %+v", got)
	}

	// One clean hour at the base rates.
	got = passiveAccrual(passiveEpoch, passiveEpoch.Add(time.Hour), neutral)
	if got.Credits != balance.PassiveCreditsPerHour || got.Data != balance.PassiveDataPerHour {
		t.Fatalf("one hour got %+v", got)
	}

	// A multi-day gap is capped at a day and paid at the skip-day rate.
	got = passiveAccrual(passiveEpoch, passiveEpoch.Add(72*time.Hour), neutral)
	wantCredits := int(balance.PassiveCreditsPerHour * balance.PassiveMaxHours * balance.PassiveSkipDayMultiplier)
	wantData := int(balance.PassiveDataPerHour * balance.PassiveMaxHours * balance.PassiveSkipDayMultiplier)
	if got.Credits != wantCredits || got.Data != wantData {
		t.Fatalf("capped gap got %+v want credits=%d data=%d", got, wantCredits, wantData)
	}

	// World effects scale income.
	boosted := neutral
	boosted.PassiveIncome = 1.2
	got = passiveAccrual(passiveEpoch, passiveEpoch.Add(time.Hour), boosted)
	if got.Credits != 7 || got.Data != 3 {
		t.Fatalf("boosted hour got %+v", got)
	}
}
