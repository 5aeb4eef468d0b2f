package game

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
)

// ownedModule is one loadout slot entry joined with its catalog definition.
type ownedModule struct {
	Def      balance.ModuleDef
	Level    int
	Mutation string
}

// resolveInput carries everything the pure pipeline needs; the service
// assembles it from DB and cache reads so the math itself stays testable
// with injected values.
type resolveInput struct {
	Modules   []ownedModule
	Traits    []balance.Trait
	Systems   SystemSet
	Alignment float64
	Buffs     map[balance.Axis]int
	World     balance.Effects
}

// resolveBundle runs the stat pipeline. Steps, in order: module sums, trait
// multipliers, health multiplier, alignment perks, temporary buffs, world
// effects. Each step feeds the next; the world effects are surfaced on the
// bundle rather than baked into the totals, because reward math applies
// them and combat math does not.
func resolveBundle(in resolveInput) StatBundle {
	bundle := StatBundle{World: in.World}

	// Step 1: per-axis module contributions, scaled by level, plus any
	// mutation variant bonus.
	categories := map[balance.ModuleCategory]bool{}
	for _, m := range in.Modules {
		categories[m.Def.Category] = true
		for axis, effect := range m.Def.Effects {
			bundle.addAxis(axis, effect*m.Level)
		}
		if v, ok := balance.MutationByID(m.Mutation); ok {
			for axis, effect := range v.Effects {
				bundle.addAxis(axis, effect)
			}
		}
	}
	bundle.DiversityCount = len(categories)

	// Step 2: trait multipliers compound independently per axis.
	for _, axis := range balance.Axes {
		total := float64(bundle.axis(axis))
		for _, t := range in.Traits {
			if t.Positive.Axis == axis {
				total *= 1 + t.Positive.Modifier
			}
			if t.Negative.Axis == axis {
				total *= 1 + t.Negative.Modifier
			}
		}
		bundle.setAxis(axis, int(math.Round(total)))
	}

	// Step 3: health multiplier, computed after traits so the efficiency
	// nudge sees the trait-adjusted value.
	bundle.HealthMultiplier = healthMultiplier(in.Systems, bundle.Efficiency)

	// Step 4: alignment perks are a step function at the extremes only.
	if perks := balance.PerksFor(in.Alignment); perks != nil {
		apply := func(axis balance.Axis, bonus float64) {
			if bonus == 0 {
				return
			}
			bundle.setAxis(axis, int(math.Round(float64(bundle.axis(axis))*(1+bonus))))
		}
		apply(balance.AxisPower, perks.AttackBonus)
		apply(balance.AxisStealth, perks.StealthBonus)
		apply(balance.AxisDefense, perks.DefenseBonus)
		apply(balance.AxisCreditBonus, perks.CreditBonus)
		apply(balance.AxisDataBonus, perks.DataDrainBonus)
	}

	// Step 5: temporary buffs are flat additions.
	for axis, amount := range in.Buffs {
		bundle.addAxis(axis, amount)
	}

	return bundle
}

// statusWeight discounts health by how degraded the subsystem is, so a
// barely-degraded system drags harder than raw health alone would suggest.
func statusWeight(status balance.SystemStatus) float64 {
	switch status {
	case balance.StatusOptimal:
		return 1.0
	case balance.StatusDegraded:
		return 0.8
	case balance.StatusCritical:
		return 0.5
	default:
		return 0
	}
}

// healthMultiplier maps average status-adjusted health to [0.1, 1.0] with a
// small positive nudge from efficiency.
func healthMultiplier(systems SystemSet, efficiency int) float64 {
	if len(systems) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, t := range balance.SystemTypes {
		h := systems[t]
		sum += float64(h) / balance.MaxSystemHealth * statusWeight(balance.StatusOf(h))
	}
	avg := sum / float64(len(balance.SystemTypes))
	mult := avg + float64(efficiency)*0.002
	return math.Max(0.1, math.Min(1.0, mult))
}

// ResolveStats computes the effective stat bundle for one loadout purpose.
func (s *Service) ResolveStats(ctx context.Context, playerID string, purpose LoadoutPurpose) (StatBundle, error) {
	if !ValidLoadoutPurpose(purpose) {
		return StatBundle{}, Validationf("unknown loadout purpose %q", purpose)
	}
	return s.resolveStats(ctx, s.db, playerID, purpose)
}

// resolveStats is shared between the public entry point and transactional
// callers that need stats consistent with rows they hold locks on.
func (s *Service) resolveStats(ctx context.Context, q querier, playerID string, purpose LoadoutPurpose) (StatBundle, error) {
	var alignment float64
	err := q.QueryRow(ctx, `
		SELECT alignment
		FROM players
		WHERE id = $1
	`, playerID).Scan(&alignment)
	if err != nil {
		if err == pgx.ErrNoRows {
			return StatBundle{}, NotFoundf("player %s not found", playerID)
		}
		return StatBundle{}, err
	}

	modules, err := loadLoadoutModules(ctx, q, playerID, purpose)
	if err != nil {
		return StatBundle{}, err
	}
	traits, err := loadTraits(ctx, q, playerID)
	if err != nil {
		return StatBundle{}, err
	}
	systems, err := loadSystems(ctx, q, playerID)
	if err != nil {
		return StatBundle{}, err
	}
	buffs, err := s.activeBuffs(ctx, playerID)
	if err != nil {
		// The cache is best effort here; resolution degrades to no buffs.
		s.log.Warn("buff lookup failed", "player_id", playerID, "error", err)
		buffs = nil
	}
	world, err := s.TodayEffects(ctx)
	if err != nil {
		world = balance.NeutralEffects()
	}

	return resolveBundle(resolveInput{
		Modules:   modules,
		Traits:    traits,
		Systems:   systems,
		Alignment: alignment,
		Buffs:     buffs,
		World:     world,
	}), nil
}

func loadLoadoutModules(ctx context.Context, q querier, playerID string, purpose LoadoutPurpose) ([]ownedModule, error) {
	rows, err := q.Query(ctx, `
		SELECT pm.module_id, pm.level, COALESCE(pm.mutation, '')
		FROM player_loadouts pl
		JOIN player_modules pm ON pm.id = pl.module_id
		WHERE pl.player_id = $1 AND pl.purpose = $2
		ORDER BY pl.slot
	`, playerID, string(purpose))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ownedModule
	for rows.Next() {
		var id, mutation string
		var level int
		if err := rows.Scan(&id, &level, &mutation); err != nil {
			return nil, err
		}
		def, ok := balance.ModuleByID(id)
		if !ok {
			continue
		}
		out = append(out, ownedModule{Def: def, Level: level, Mutation: mutation})
	}
	return out, rows.Err()
}

func loadTraits(ctx context.Context, q querier, playerID string) ([]balance.Trait, error) {
	rows, err := q.Query(ctx, `
		SELECT trait_id
		FROM player_traits
		WHERE player_id = $1
		ORDER BY trait_id
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []balance.Trait
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if t, ok := balance.TraitByID(id); ok {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

func loadSystems(ctx context.Context, q querier, playerID string) (SystemSet, error) {
	rows, err := q.Query(ctx, `
		SELECT system_type, health
		FROM player_systems
		WHERE player_id = $1
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(SystemSet, len(balance.SystemTypes))
	for rows.Next() {
		var t string
		var h int
		if err := rows.Scan(&t, &h); err != nil {
			return nil, err
		}
		set[balance.SystemType(t)] = h
	}
	return set, rows.Err()
}

func buffKey(playerID string, axis balance.Axis) string {
	return fmt.Sprintf("buff:%s:%s", playerID, axis)
}

// activeBuffs reads the per-axis temporary buffs from the cache. Expired
// keys simply stop appearing.
func (s *Service) activeBuffs(ctx context.Context, playerID string) (map[balance.Axis]int, error) {
	out := map[balance.Axis]int{}
	for _, axis := range balance.Axes {
		v, ok, err := s.cache.Get(ctx, buffKey(playerID, axis))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		amount, err := strconv.Atoi(v)
		if err != nil || amount == 0 {
			continue
		}
		out[axis] = amount
	}
	return out, nil
}
