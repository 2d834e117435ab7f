package eventmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating events table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS events (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(50) NOT NULL,
					start_at TIMESTAMPTZ NOT NULL,
					end_at TIMESTAMPTZ NOT NULL,
					global BOOLEAN NOT NULL DEFAULT FALSE,
					admin_locked BOOLEAN NOT NULL DEFAULT FALSE,
					guild_ids TEXT[] NOT NULL DEFAULT '{}',
					guilds JSONB NOT NULL,
					teams JSONB NOT NULL DEFAULT '[]',
					tracking JSONB NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT events_window_order CHECK (start_at < end_at)
				);
			`); err != nil {
				return fmt.Errorf("failed to create events table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_events_guild_ids ON events USING GIN (guild_ids);
				CREATE INDEX IF NOT EXISTS idx_events_start_at ON events (start_at);
				CREATE INDEX IF NOT EXISTS idx_events_end_at ON events (end_at);
			`); err != nil {
				return fmt.Errorf("failed to create events indexes: %w", err)
			}

			fmt.Println("Events table created successfully!")
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Rolling back events table...")

		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS events CASCADE;`); err != nil {
			return fmt.Errorf("failed to drop events table: %w", err)
		}
		return nil
	})
}
