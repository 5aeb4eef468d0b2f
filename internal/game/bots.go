package game

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"gridmind/internal/balance"
)

type BotTier string

const (
	TierNovice   BotTier = "novice"
	TierAdaptive BotTier = "adaptive"
	TierElite    BotTier = "elite"
)

// Bot is a synthetic opponent derived entirely from (player, day, index).
// Nothing about a bot is ever stored; an id presented later is validated by
// re-deriving the pool.
type Bot struct {
	ID               string
	Name             string
	Tier             BotTier
	Level            int
	DefensePower     int
	Alignment        float64
	Reputation       int
	Playstyle        string
	RewardMultiplier float64
	dayKey           string
	seed             uint64
}

var botNamePrefixes = []string{
	"VEX", "NYX", "KRN", "OBL", "SYN", "RZR", "HEX", "FLX", "QRM", "ZPH",
}

var botNameSuffixes = []string{
	"Warden", "Cipher", "Drone", "Sentinel", "Harvester", "Specter",
	"Daemon", "Oracle", "Reaver", "Shard",
}

var botPlaystyles = []string{"aggressive", "defensive", "opportunistic", "methodical"}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// fraction derives a uniform-ish value in [0, 1) from a salted hash of the
// bot seed. Independent salts give independent attributes from one seed.
func fraction(seed uint64, salt string) float64 {
	h := fnvHash(fmt.Sprintf("%x:%s", seed, salt))
	return float64(h%1_000_000) / 1_000_000
}

func tierFor(seed uint64) BotTier {
	f := fraction(seed, "tier")
	switch {
	case f < 0.50:
		return TierNovice
	case f < 0.85:
		return TierAdaptive
	default:
		return TierElite
	}
}

// levelOffsetBand is the tier-relative band around the requesting player's
// level: novices skew below, elites skew above.
func levelOffsetBand(tier BotTier) (lo, hi int) {
	switch tier {
	case TierNovice:
		return -2, 0
	case TierAdaptive:
		return -1, 1
	default:
		return 0, 2
	}
}

func buildBot(playerID, dayKey string, playerLevel, index int) Bot {
	seed := fnvHash(fmt.Sprintf("%s:%s:%d", playerID, dayKey, index))
	tier := tierFor(seed)

	lo, hi := levelOffsetBand(tier)
	offset := lo + int(fraction(seed, "level")*float64(hi-lo+1))
	level := playerLevel + offset
	// Matchmaking window clamp, then global floor.
	if level > playerLevel+balance.PvPLevelRange {
		level = playerLevel + balance.PvPLevelRange
	}
	if level < playerLevel-balance.PvPLevelRange {
		level = playerLevel - balance.PvPLevelRange
	}
	if level < 1 {
		level = 1
	}

	defense := balance.PvPDefaultDefensePower + level*3 + int(fraction(seed, "defense")*8)
	reward := balance.BotRewardMultiplierLo +
		fraction(seed, "reward")*(balance.BotRewardMultiplierHi-balance.BotRewardMultiplierLo)

	alignment := balance.ClampAlignment(fraction(seed, "alignment")*2 - 1)
	reputation := 40 + level*12 + int(fraction(seed, "reputation")*60)

	name := fmt.Sprintf("%s-%s-%02d",
		botNamePrefixes[int(fraction(seed, "prefix")*float64(len(botNamePrefixes)))],
		botNameSuffixes[int(fraction(seed, "suffix")*float64(len(botNameSuffixes)))],
		seed%100)

	return Bot{
		ID:               fmt.Sprintf("bot:%s:%s:%d:%x", dayKey, tier, level, seed),
		Name:             name,
		Tier:             tier,
		Level:            level,
		DefensePower:     defense,
		Alignment:        alignment,
		Reputation:       reputation,
		Playstyle:        botPlaystyles[int(fraction(seed, "playstyle")*float64(len(botPlaystyles)))],
		RewardMultiplier: reward,
		dayKey:           dayKey,
		seed:             seed,
	}
}

// BuildBotPool derives the full synthetic opponent pool for one player and
// day. The same three inputs always reproduce the identical pool.
func BuildBotPool(playerID, dayKey string, playerLevel, size int) []Bot {
	out := make([]Bot, 0, size)
	for i := 0; i < size; i++ {
		out = append(out, buildBot(playerID, dayKey, playerLevel, i))
	}
	return out
}

// IsBotID reports whether an opponent id names a synthetic opponent.
func IsBotID(id string) bool {
	return strings.HasPrefix(id, "bot:")
}

// parsedBotID is the decoded shape of a bot id, before pool validation.
type parsedBotID struct {
	DayKey string
	Tier   BotTier
	Level  int
	Seed   uint64
}

func parseBotID(id string) (parsedBotID, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 5 || parts[0] != "bot" {
		return parsedBotID{}, Validationf("malformed opponent id")
	}
	level, err := strconv.Atoi(parts[3])
	if err != nil {
		return parsedBotID{}, Validationf("malformed opponent id")
	}
	seed, err := strconv.ParseUint(parts[4], 16, 64)
	if err != nil {
		return parsedBotID{}, Validationf("malformed opponent id")
	}
	return parsedBotID{
		DayKey: parts[1],
		Tier:   BotTier(parts[2]),
		Level:  level,
		Seed:   seed,
	}, nil
}

// ValidateBotID re-derives the presenter's pool for today and confirms the
// id belongs to it. Stale day keys and out-of-pool ids are rejected; this is
// how bot attacks stay consistent without persisting the pool.
func ValidateBotID(id, playerID, dayKey string, playerLevel int) (Bot, error) {
	parsed, err := parseBotID(id)
	if err != nil {
		return Bot{}, err
	}
	if parsed.DayKey != dayKey {
		return Bot{}, NotEligiblef("opponent pool has rotated, rescan for targets")
	}
	for _, b := range BuildBotPool(playerID, dayKey, playerLevel, balance.BotPoolSize) {
		if b.ID == id {
			return b, nil
		}
	}
	return Bot{}, NotFoundf("opponent not in your current pool")
}

// WithBotBackfill pads a human opponent list with synthetic ones when it is
// sparse. Humans stay first and are never evicted; synthetic count is capped
// regardless of how empty the list is, and high-level players get none.
func WithBotBackfill(humans []Opponent, playerID, dayKey string, playerLevel int) []Opponent {
	if len(humans) >= balance.BotOpponentFloor || playerLevel > balance.BotMaxPlayerLevel {
		return humans
	}
	need := balance.BotOpponentFloor - len(humans)
	if need > balance.BotMaxBackfill {
		need = balance.BotMaxBackfill
	}
	out := humans
	for _, b := range BuildBotPool(playerID, dayKey, playerLevel, balance.BotPoolSize) {
		if len(out) >= len(humans)+need {
			break
		}
		out = append(out, Opponent{
			ID:         b.ID,
			AIName:     b.Name,
			Level:      b.Level,
			Reputation: b.Reputation,
			Playstyle:  b.Playstyle,
			Alignment:  b.Alignment,
			IsBot:      true,
			BotTier:    b.Tier,
		})
	}
	return out
}
