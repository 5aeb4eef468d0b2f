package game

import (
	"fmt"
	"testing"

	"gridmind/internal/balance"
)

func TestBuildBotPoolDeterministic(t *testing.T) {
	a := BuildBotPool("player-1", "2026-08-28", 10, balance.BotPoolSize)
	b := BuildBotPool("player-1", "2026-08-28", 10, balance.BotPoolSize)
	if len(a) != balance.BotPoolSize {
		t.Fatalf("pool size got %d want %d", len(a), balance.BotPoolSize)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pool not deterministic at index %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestBuildBotPoolRotatesWithDay(t *testing.T) {
	today := BuildBotPool("player-1", "2026-08-28", 10, balance.BotPoolSize)
	tomorrow := BuildBotPool("player-1", "2026-08-29", 10, balance.BotPoolSize)
	for i := range today {
		if today[i].ID == tomorrow[i].ID {
			t.Fatalf("bot %d survived day rotation: %s", i, today[i].ID)
		}
	}
}

func TestBuildBotPoolVariesPerPlayer(t *testing.T) {
	a := BuildBotPool("player-1", "2026-08-28", 10, balance.BotPoolSize)
	b := BuildBotPool("player-2", "2026-08-28", 10, balance.BotPoolSize)
	same := 0
	for i := range a {
		if a[i].ID == b[i].ID {
			same++
		}
	}
	if same == len(a) {
		t.Fatalf("two players drew identical pools")
	}
}

func TestBotAttributes(t *testing.T) {
	for _, level := range []int{1, 10, 40} {
		for _, b := range BuildBotPool("player-1", "2026-08-28", level, balance.BotPoolSize) {
			if b.RewardMultiplier < balance.BotRewardMultiplierLo || b.RewardMultiplier >= 1.0 {
				t.Fatalf("reward multiplier out of range: %v", b.RewardMultiplier)
			}
			if b.Level < 1 {
				t.Fatalf("bot level below 1: %d", b.Level)
			}
			lo := level - balance.PvPLevelRange
			if lo < 1 {
				lo = 1
			}
			if b.Level > level+balance.PvPLevelRange || b.Level < lo {
				t.Fatalf("bot level %d outside window around %d", b.Level, level)
			}
			if b.DefensePower <= 0 {
				t.Fatalf("bot defense must be positive: %d", b.DefensePower)
			}
			if b.Name == "" || b.Playstyle == "" {
				t.Fatalf("bot missing flavor fields: %+v", b)
			}
			if b.Alignment < -1 || b.Alignment > 1 {
				t.Fatalf("bot alignment out of range: %v", b.Alignment)
			}
			if !IsBotID(b.ID) {
				t.Fatalf("bot id missing prefix: %s", b.ID)
			}
		}
	}
}

func TestBotTierSpread(t *testing.T) {
	counts := map[BotTier]int{}
	for i := 0; i < 50; i++ {
		pool := BuildBotPool(fmt.Sprintf("player-%d", i), "2026-08-28", 10, balance.BotPoolSize)
		for _, b := range pool {
			counts[b.Tier]++
		}
	}
	if counts[TierNovice] == 0 || counts[TierAdaptive] == 0 || counts[TierElite] == 0 {
		t.Fatalf("expected all tiers across 600 bots, got %+v", counts)
	}
	if counts[TierNovice] <= counts[TierElite] {
		t.Fatalf("novices should outnumber elites: %+v", counts)
	}
}

func TestValidateBotID(t *testing.T) {
	pool := BuildBotPool("player-1", "2026-08-28", 10, balance.BotPoolSize)
	target := pool[0]

	got, err := ValidateBotID(target.ID, "player-1", "2026-08-28", 10)
	if err != nil {
		t.Fatalf("expected pool member to validate: %v", err)
	}
	if got.ID != target.ID || got.DefensePower != target.DefensePower {
		t.Fatalf("re-derived bot differs: %+v vs %+v", got, target)
	}

	// Yesterday's id is stale, not invalid.
	if _, err := ValidateBotID(target.ID, "player-1", "2026-08-29", 10); KindOf(err) != KindNotEligible {
		t.Fatalf("stale day should be not_eligible, got %v", err)
	}

	// A well-formed id that is not in the presenter's pool is rejected.
	foreign := BuildBotPool("player-2", "2026-08-28", 10, balance.BotPoolSize)[0]
	if _, err := ValidateBotID(foreign.ID, "player-1", "2026-08-28", 10); KindOf(err) != KindNotFound {
		t.Fatalf("foreign bot should be not_found, got %v", err)
	}

	for _, id := range []string{"bot:2026-08-28", "bot:a:b:c:d", "bot:2026-08-28:elite:nine:ff", "human-uuid"} {
		if _, err := ValidateBotID(id, "player-1", "2026-08-28", 10); KindOf(err) != KindValidation {
			t.Fatalf("id %q should fail validation, got %v", id, err)
		}
	}
}

func TestIsBotID(t *testing.T) {
	if !IsBotID("bot:2026-08-28:elite:9:ff00") {
		t.Fatalf("expected bot id")
	}
	if IsBotID("5d2f0c1e-0000-0000-0000-000000000000") {
		t.Fatalf("uuid misidentified as bot")
	}
}

func TestWithBotBackfill(t *testing.T) {
	humans := func(n int) []Opponent {
		out := make([]Opponent, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, Opponent{ID: fmt.Sprintf("human-%d", i), AIName: fmt.Sprintf("H%d", i)})
		}
		return out
	}

	// Empty list gets at most the backfill cap, never the full floor.
	got := WithBotBackfill(nil, "player-1", "2026-08-28", 10)
	if len(got) != balance.BotMaxBackfill {
		t.Fatalf("empty list got %d opponents want %d", len(got), balance.BotMaxBackfill)
	}
	for _, o := range got {
		if !o.IsBot {
			t.Fatalf("backfill produced a non-bot: %+v", o)
		}
	}

	// Partially filled list is topped up to the floor.
	got = WithBotBackfill(humans(6), "player-1", "2026-08-28", 10)
	if len(got) != balance.BotOpponentFloor {
		t.Fatalf("got %d opponents want %d", len(got), balance.BotOpponentFloor)
	}
	for i := 0; i < 6; i++ {
		if got[i].IsBot {
			t.Fatalf("humans must stay ahead of bots, slot %d: %+v", i, got[i])
		}
	}

	// A full list and a high-level player both skip backfill.
	if got := WithBotBackfill(humans(8), "player-1", "2026-08-28", 10); len(got) != 8 {
		t.Fatalf("full list should be untouched, got %d", len(got))
	}
	if got := WithBotBackfill(humans(2), "player-1", "2026-08-28", balance.BotMaxPlayerLevel+1); len(got) != 2 {
		t.Fatalf("high-level player should get no bots, got %d", len(got))
	}
}
