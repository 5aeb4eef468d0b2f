package balance

import "testing"

func TestRiskRatingFor(t *testing.T) {
	cases := []struct {
		security int
		want     RiskRating
	}{
		{10, RiskLow},
		{29, RiskLow},
		{30, RiskMedium},
		{54, RiskMedium},
		{55, RiskHigh},
		{74, RiskHigh},
		{75, RiskCritical},
		{95, RiskCritical},
	}
	for _, c := range cases {
		if got := RiskRatingFor(c.security); got != c.want {
			t.Errorf("RiskRatingFor(%d) = %s, want %s", c.security, got, c.want)
		}
	}
}

func TestTargetRewardFor(t *testing.T) {
	cases := []struct {
		security int
		want     TargetRewards
	}{
		{0, TargetRewards{Credits: 9, Data: 5, Reputation: 1, XP: 9}},
		{33, TargetRewards{Credits: 40, Data: 24, Reputation: 4, XP: 16}},
		{95, TargetRewards{Credits: 99, Data: 60, Reputation: 10, XP: 29}},
	}
	for _, c := range cases {
		if got := TargetRewardFor(c.security); got != c.want {
			t.Errorf("TargetRewardFor(%d) = %+v, want %+v", c.security, got, c.want)
		}
	}

	// The curve is monotonic in security.
	prev := TargetRewardFor(0)
	for sec := 1; sec <= TargetSecurityMax; sec++ {
		cur := TargetRewardFor(sec)
		if cur.Credits < prev.Credits || cur.Data < prev.Data || cur.XP < prev.XP {
			t.Fatalf("reward curve dipped at security %d: %+v -> %+v", sec, prev, cur)
		}
		prev = cur
	}
}

func TestHackSuccessChance(t *testing.T) {
	cases := []struct {
		power, security, level int
		want                   int
	}{
		{30, 60, 6, 28},  // base 58 + 30 - 60
		{0, 95, 10, 22},  // global floor past the early window
		{0, 95, 1, 36},   // early floor at level 1
		{0, 95, 4, 27},   // early floor fades 3 per level
		{200, 10, 5, 95}, // ceiling
	}
	for _, c := range cases {
		if got := HackSuccessChance(c.power, c.security, c.level); got != c.want {
			t.Errorf("HackSuccessChance(%d, %d, %d) = %d, want %d",
				c.power, c.security, c.level, got, c.want)
		}
	}

	// More power never lowers the odds.
	prev := 0
	for power := 0; power <= 150; power += 10 {
		got := HackSuccessChance(power, 70, 5)
		if got < prev {
			t.Fatalf("success chance dropped at power %d: %d -> %d", power, prev, got)
		}
		prev = got
	}
}

func TestClampDetection(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{-12, 5},
		{0, 5},
		{4.4, 5},
		{50.5, 51},
		{95, 95},
		{140, 95},
	}
	for _, c := range cases {
		if got := ClampDetection(c.in); got != c.want {
			t.Errorf("ClampDetection(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestHeatDamageFor(t *testing.T) {
	cases := []struct {
		heat int
		want HeatDamageTier
	}{
		{-1, HeatDamageTier{5, 10, 1}},
		{0, HeatDamageTier{5, 10, 1}},
		{1, HeatDamageTier{10, 20, 2}},
		{2, HeatDamageTier{20, 40, 3}},
		{9, HeatDamageTier{20, 40, 3}}, // ladder saturates
	}
	for _, c := range cases {
		if got := HeatDamageFor(c.heat); got != c.want {
			t.Errorf("HeatDamageFor(%d) = %+v, want %+v", c.heat, got, c.want)
		}
	}
}
