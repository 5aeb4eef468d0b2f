package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure creates the schema if it does not exist. Every statement is
// idempotent, so both binaries can run it unconditionally at boot.
func Ensure(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id                uuid PRIMARY KEY,
			wallet_address    text NOT NULL,
			ai_name           text NOT NULL,
			level             int NOT NULL DEFAULT 1,
			xp                int NOT NULL DEFAULT 0,
			credits           int NOT NULL DEFAULT 0,
			data              int NOT NULL DEFAULT 0,
			processing_power  int NOT NULL DEFAULT 0,
			reputation        int NOT NULL DEFAULT 0,
			energy            int NOT NULL DEFAULT 0,
			energy_updated_at timestamptz NOT NULL DEFAULT now(),
			alignment         double precision NOT NULL DEFAULT 0,
			heat_level        int NOT NULL DEFAULT 0,
			is_alive          boolean NOT NULL DEFAULT true,
			in_arena          boolean NOT NULL DEFAULT false,
			mint_ref          text,
			last_active_at    timestamptz NOT NULL DEFAULT now(),
			last_decay_at     timestamptz NOT NULL DEFAULT now(),
			created_at        timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS players_wallet_alive_idx
			ON players (wallet_address) WHERE is_alive`,
		`CREATE INDEX IF NOT EXISTS players_arena_idx
			ON players (in_arena, level) WHERE is_alive`,

		`CREATE TABLE IF NOT EXISTS player_systems (
			player_id   uuid NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			system_type text NOT NULL,
			health      int NOT NULL DEFAULT 100,
			updated_at  timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (player_id, system_type)
		)`,

		`CREATE TABLE IF NOT EXISTS player_modules (
			id         uuid NOT NULL DEFAULT gen_random_uuid(),
			player_id  uuid NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			module_id  text NOT NULL,
			level      int NOT NULL DEFAULT 1,
			mutation   text,
			created_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (player_id, module_id),
			UNIQUE (id)
		)`,

		`CREATE TABLE IF NOT EXISTS player_loadouts (
			player_id uuid NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			purpose   text NOT NULL,
			slot      int NOT NULL,
			module_id uuid NOT NULL REFERENCES player_modules(id) ON DELETE CASCADE,
			PRIMARY KEY (player_id, purpose, slot)
		)`,

		`CREATE TABLE IF NOT EXISTS player_traits (
			player_id  uuid NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			trait_id   text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (player_id, trait_id)
		)`,

		`CREATE TABLE IF NOT EXISTS combat_logs (
			id          bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			attacker_id uuid NOT NULL,
			target_id   text NOT NULL,
			result      text NOT NULL,
			win_chance  double precision NOT NULL,
			rounds      jsonb NOT NULL,
			rewards     jsonb,
			created_at  timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS combat_logs_attacker_idx
			ON combat_logs (attacker_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS infiltration_logs (
			id                bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			player_id         uuid NOT NULL,
			target_type       text NOT NULL,
			security_level    int NOT NULL,
			success           boolean NOT NULL,
			detected          boolean NOT NULL,
			credits_earned    int NOT NULL DEFAULT 0,
			reputation_earned int NOT NULL DEFAULT 0,
			damage_taken      jsonb,
			created_at        timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS infiltration_logs_player_idx
			ON infiltration_logs (player_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS daily_modifiers (
			day_key     text PRIMARY KEY,
			modifier_id text NOT NULL,
			created_at  timestamptz NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS weekly_topologies (
			week_key      text PRIMARY KEY,
			boosted_node  text NOT NULL,
			boost_name    text NOT NULL,
			boost_axis    text NOT NULL,
			boost_value   double precision NOT NULL,
			hindered_node text NOT NULL,
			hinder_name   text NOT NULL,
			hinder_axis   text NOT NULL,
			hinder_value  double precision NOT NULL,
			special_node  text,
			created_at    timestamptz NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS wallet_carryovers (
			wallet_address text PRIMARY KEY,
			payload        jsonb NOT NULL,
			deaths_count   int NOT NULL DEFAULT 1,
			consumed       boolean NOT NULL DEFAULT false,
			created_at     timestamptz NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS pending_burns (
			id             uuid PRIMARY KEY,
			wallet_address text NOT NULL,
			mint_ref       text NOT NULL,
			retry_count    int NOT NULL DEFAULT 0,
			last_tried_at  timestamptz,
			created_at     timestamptz NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
