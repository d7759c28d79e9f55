package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the tables the service needs. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists signals (
			id text primary key,
			pair text not null,
			direction text not null,
			timeframe int not null,
			confidence double precision not null default 0,
			entry_time timestamptz not null,
			entry_price double precision not null default 0,
			exit_price double precision null,
			result text null,
			profit_loss double precision null,
			strategy text not null default '',
			source text not null default 'automation',
			admin_signal_id text null,
			factors jsonb not null default '[]'::jsonb,
			processing_status text not null default 'pending',
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		);`,
		`create index if not exists idx_signals_pending on signals (entry_time) where result is null;`,
		`create index if not exists idx_signals_created on signals (created_at desc);`,
		`create table if not exists admin_signals (
			id text primary key,
			pair text not null,
			direction text not null,
			scheduled_time timestamptz not null,
			timeframe int not null default 1,
			status text not null default 'pending',
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		);`,
		`create index if not exists idx_admin_signals_pending on admin_signals (scheduled_time) where status = 'pending';`,
		`create table if not exists system_settings (
			key text primary key,
			value jsonb not null,
			updated_at timestamptz not null default now()
		);`,
		`insert into system_settings (key, value) values ('system_enabled', '{"enabled": true}'::jsonb)
			on conflict (key) do nothing;`,
	}

	for i, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
