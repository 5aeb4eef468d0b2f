package game

import (
	"context"
	"testing"
	"time"
)

func TestAINamePattern(t *testing.T) {
	valid := []string{"ARES-7", "deep thought", "Unit_01", "abc"}
	for _, name := range valid {
		if !aiNameRE.MatchString(name) {
			t.Fatalf("expected %q to be accepted", name)
		}
	}
	invalid := []string{"ab", "", "назва", "semi;colon", "way-too-long-name-over-thirty-two-chars"}
	for _, name := range invalid {
		if aiNameRE.MatchString(name) {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestTodayKey(t *testing.T) {
	s := NewService(nil, nil, nil, nil)
	s.SetClock(func() time.Time {
		// Just before midnight UTC in a positive-offset zone.
		return time.Date(2026, 8, 29, 0, 30, 0, 0, time.FixedZone("EEST", 3*3600))
	})
	if got := s.todayKey(); got != "2026-08-28" {
		t.Fatalf("day key got %s want 2026-08-28", got)
	}
}

func TestDailyCounter(t *testing.T) {
	ctx := context.Background()
	s := NewService(nil, nil, nil, nil)

	if n, err := s.dailyCounterValue(ctx, "k"); err != nil || n != 0 {
		t.Fatalf("empty counter got (%d, %v)", n, err)
	}
	for want := 1; want <= 3; want++ {
		n, err := s.dailyCounter(ctx, "k")
		if err != nil || n != want {
			t.Fatalf("incr got (%d, %v) want %d", n, err, want)
		}
	}
	if n, _ := s.dailyCounterValue(ctx, "k"); n != 3 {
		t.Fatalf("read-back got %d want 3", n)
	}
}

func TestRandRange(t *testing.T) {
	s := NewService(nil, nil, nil, nil)
	s.SetSeed(99)
	for i := 0; i < 200; i++ {
		v := s.randRange(2, 3)
		if v < 2 || v > 3 {
			t.Fatalf("value %d out of [2,3]", v)
		}
	}
	if got := s.randRange(5, 5); got != 5 {
		t.Fatalf("degenerate range got %d", got)
	}
	if got := s.randIndex(1); got != 0 {
		t.Fatalf("single-element index got %d", got)
	}
}
