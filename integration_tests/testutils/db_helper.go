package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	eventmigrations "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/repositories/migrations"
)

// OpenDB opens a Bun handle on dsn.
func OpenDB(dsn string) *bun.DB {
	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(pgdb, pgdialect.New())
}

// RunMigrations applies River's schema and every module migration.
func RunMigrations(ctx context.Context, db *bun.DB, dsn string) error {
	if err := RunRiverMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}

	migrator := migrate.NewMigrator(db, eventmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run event migrations: %w", err)
	}
	log.Printf("Applied migrations: %s", group)
	return nil
}

// RunRiverMigrations migrates River's tables up to the latest version.
func RunRiverMigrations(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to migrate River: %w", err)
	}
	return nil
}

// TruncateEvents clears the events table between tests.
func TruncateEvents(ctx context.Context, db bun.IDB) error {
	if _, err := db.ExecContext(ctx, `TRUNCATE TABLE events RESTART IDENTITY CASCADE`); err != nil {
		return fmt.Errorf("failed to truncate events: %w", err)
	}
	return nil
}

// CleanupRiverJobs deletes every job from the River queue.
func CleanupRiverJobs(ctx context.Context, db bun.IDB) error {
	_, err := db.ExecContext(ctx, "DELETE FROM river_job")
	return err
}
