package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gridmind/internal/balance"
	"gridmind/internal/events"
)

const modifierCacheTTL = time.Hour

func dailyModifierKey(dayKey string) string  { return "daily_mod:" + dayKey }
func topologyCacheKey(weekKey string) string { return "topology:" + weekKey }

// weekKey buckets time into ISO weeks for topology rotation.
func (s *Service) weekKey() string {
	year, week := s.now().UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// DailyModifierView is the caller-facing shape of today's world modifier.
type DailyModifierView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Severity    string          `json:"severity"`
	Effects     balance.Effects `json:"effects"`
}

// TodayEffects resolves today's effect multipliers: the daily modifier with
// this week's topology folded on top. Every failure path lands on the neutral
// set so stat resolution and rewards never block on a missing record.
func (s *Service) TodayEffects(ctx context.Context) (balance.Effects, error) {
	m, err := s.TodayModifier(ctx)
	if err != nil {
		return balance.NeutralEffects(), err
	}
	e := m.Effects
	if topo, terr := s.CurrentTopology(ctx); terr == nil {
		e = balance.ApplyTopologyEffect(e, topo.BoostEffect)
		e = balance.ApplyTopologyEffect(e, topo.HinderEffect)
	}
	return e, nil
}

func (s *Service) TodayModifier(ctx context.Context) (DailyModifierView, error) {
	day := s.todayKey()

	if id, ok, _ := s.cache.Get(ctx, dailyModifierKey(day)); ok {
		if m, found := balance.ModifierByID(id); found {
			return modifierView(m), nil
		}
	}

	id, err := s.loadOrCreateDailyModifier(ctx, day)
	if err != nil {
		s.log.Warn("daily modifier unavailable, using neutral", "error", err)
		return DailyModifierView{ID: "neutral", Name: "Stable Grid", Severity: "none",
			Effects: balance.NeutralEffects()}, nil
	}
	_ = s.cache.Set(ctx, dailyModifierKey(day), id, modifierCacheTTL)

	m, ok := balance.ModifierByID(id)
	if !ok {
		return DailyModifierView{ID: "neutral", Name: "Stable Grid", Severity: "none",
			Effects: balance.NeutralEffects()}, nil
	}
	return modifierView(m), nil
}

func modifierView(m balance.Modifier) DailyModifierView {
	return DailyModifierView{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Severity:    string(m.Severity),
		Effects:     balance.EffectsForModifier(m.ID),
	}
}

// loadOrCreateDailyModifier reads today's record, drawing and inserting one
// if the day has not been rolled yet. The insert races benignly: ON CONFLICT
// keeps the first writer's draw and everyone re-reads.
func (s *Service) loadOrCreateDailyModifier(ctx context.Context, day string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		SELECT modifier_id FROM daily_modifiers WHERE day_key = $1
	`, day).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return "", err
	}

	s.mu.Lock()
	picked := balance.PickDailyModifier(s.rand)
	s.mu.Unlock()

	if _, err := s.db.Exec(ctx, `
		INSERT INTO daily_modifiers (day_key, modifier_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (day_key) DO NOTHING
	`, day, picked.ID); err != nil {
		return "", err
	}
	if err := s.db.QueryRow(ctx, `
		SELECT modifier_id FROM daily_modifiers WHERE day_key = $1
	`, day).Scan(&id); err != nil {
		return "", err
	}
	if id == picked.ID {
		s.publish(events.KindWorldEvent, "", "World modifier active: "+picked.Name+". "+picked.Description)
	}
	return id, nil
}

// TopologyView is this week's network topology: one boosted and one hindered
// node, each with a named effect, plus an occasional special node that scans
// surface as an extra high-security mark.
type TopologyView struct {
	WeekKey      string                 `json:"week_key"`
	BoostedNode  balance.TopologyNode   `json:"boosted_node"`
	BoostEffect  balance.TopologyEffect `json:"boost_effect"`
	HinderedNode balance.TopologyNode   `json:"hindered_node"`
	HinderEffect balance.TopologyEffect `json:"hinder_effect"`
	SpecialNode  string                 `json:"special_node,omitempty"`
}

// CurrentTopology returns this week's record, creating it on first read.
func (s *Service) CurrentTopology(ctx context.Context) (TopologyView, error) {
	week := s.weekKey()

	if raw, ok, _ := s.cache.Get(ctx, topologyCacheKey(week)); ok {
		var cached TopologyView
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	}

	view, err := s.loadTopology(ctx, week)
	if err == nil {
		s.cacheTopology(ctx, view)
		return view, nil
	}
	if err != pgx.ErrNoRows {
		return TopologyView{}, err
	}

	boostedIdx := s.randIndex(len(balance.TopologyNodes))
	hinderedIdx := s.randIndex(len(balance.TopologyNodes))
	for hinderedIdx == boostedIdx {
		hinderedIdx = s.randIndex(len(balance.TopologyNodes))
	}
	boost := balance.BoostEffects[s.randIndex(len(balance.BoostEffects))]
	hinder := balance.HindranceEffects[s.randIndex(len(balance.HindranceEffects))]
	var special *string
	if s.nextFloat() < balance.RogueMalwareChance {
		name := balance.RogueMalwareNodeName
		special = &name
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO weekly_topologies
		    (week_key, boosted_node, boost_name, boost_axis, boost_value,
		     hindered_node, hinder_name, hinder_axis, hinder_value, special_node, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (week_key) DO NOTHING
	`, week, string(balance.TopologyNodes[boostedIdx]), boost.Name, boost.Axis, boost.Value,
		string(balance.TopologyNodes[hinderedIdx]), hinder.Name, hinder.Axis, hinder.Value, special); err != nil {
		return TopologyView{}, err
	}
	view, err = s.loadTopology(ctx, week)
	if err == nil {
		s.cacheTopology(ctx, view)
	}
	return view, err
}

func (s *Service) cacheTopology(ctx context.Context, v TopologyView) {
	if raw, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, topologyCacheKey(v.WeekKey), string(raw), modifierCacheTTL)
	}
}

func (s *Service) loadTopology(ctx context.Context, week string) (TopologyView, error) {
	var v TopologyView
	var boosted, hindered string
	var special *string
	err := s.db.QueryRow(ctx, `
		SELECT boosted_node, boost_name, boost_axis, boost_value,
		       hindered_node, hinder_name, hinder_axis, hinder_value, special_node
		FROM weekly_topologies
		WHERE week_key = $1
	`, week).Scan(&boosted, &v.BoostEffect.Name, &v.BoostEffect.Axis, &v.BoostEffect.Value,
		&hindered, &v.HinderEffect.Name, &v.HinderEffect.Axis, &v.HinderEffect.Value, &special)
	if err != nil {
		return TopologyView{}, err
	}
	v.WeekKey = week
	v.BoostedNode = balance.TopologyNode(boosted)
	v.HinderedNode = balance.TopologyNode(hindered)
	if special != nil {
		v.SpecialNode = *special
	}
	return v, nil
}

// RotateDailyModifier is the worker entry point: it just forces today's
// record to exist.
func (s *Service) RotateDailyModifier(ctx context.Context) error {
	_, err := s.loadOrCreateDailyModifier(ctx, s.todayKey())
	return err
}

// RotateWeeklyTopology is the worker entry point for the weekly record.
func (s *Service) RotateWeeklyTopology(ctx context.Context) error {
	_, err := s.CurrentTopology(ctx)
	return err
}
