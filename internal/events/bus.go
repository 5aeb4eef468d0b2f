// Package events carries the outbound narrative/event broadcast. The core
// depends only on the publish-only Bus interface; delivery transport is an
// implementation detail and must never block a mutation.
package events

import (
	"log/slog"
	"time"
)

type Kind string

const (
	KindLevelUp    Kind = "level_up"
	KindDeath      Kind = "death"
	KindRebirth    Kind = "rebirth"
	KindCombat     Kind = "combat"
	KindWorldEvent Kind = "world_event"
)

type Event struct {
	Kind     Kind      `json:"kind"`
	PlayerID string    `json:"player_id,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Bus is publish-only and fire-and-forget.
type Bus interface {
	Publish(Event)
}

// LogBus writes events to the structured log. It is the default sink when no
// hub transport is attached.
type LogBus struct {
	Log *slog.Logger
}

func (b *LogBus) Publish(e Event) {
	log := b.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("event", "kind", string(e.Kind), "player_id", e.PlayerID, "message", e.Message)
}

// Multi fans one event out to several buses.
type Multi []Bus

func (m Multi) Publish(e Event) {
	for _, b := range m {
		b.Publish(e)
	}
}
