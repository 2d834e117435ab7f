package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	eventmigrations "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/osrs-event-bot/config"
)

var modules = map[string]*migrate.Migrations{
	"event": eventmigrations.Migrations,
}

func main() {
	cliApp := &cli.App{
		Name:  "bun",
		Usage: "schema management for the event bot",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file"},
			&cli.StringFlag{Name: "dsn", EnvVars: []string{"DATABASE_URL"}, Usage: "postgres DSN, skips the config file"},
		},
		Commands: []*cli.Command{
			newMigrateCommand(),
			newRiverCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func resolveDSN(c *cli.Context) (string, error) {
	if dsn := c.String("dsn"); dsn != "" {
		return dsn, nil
	}
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.Postgres.DSN, nil
}

// withMigrators opens the database and runs fn once per module, in name order.
// A module name as first argument restricts the run to that module.
func withMigrators(c *cli.Context, fn func(name string, m *migrate.Migrator) error) error {
	dsn, err := resolveDSN(c)
	if err != nil {
		return err
	}
	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())
	defer db.Close()

	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	slices.Sort(names)

	if only := c.Args().First(); only != "" {
		if _, ok := modules[only]; !ok {
			return fmt.Errorf("invalid module name: %s", only)
		}
		names = []string{only}
	}

	for _, name := range names {
		if err := fn(name, migrate.NewMigrator(db, modules[name])); err != nil {
			return fmt.Errorf("module %s: %w", name, err)
		}
	}
	return nil
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "create migration tables",
				ArgsUsage: "[module]",
				Action: func(c *cli.Context) error {
					return withMigrators(c, func(name string, m *migrate.Migrator) error {
						fmt.Printf("Initializing migrations for module: %s\n", name)
						return m.Init(c.Context)
					})
				},
			},
			{
				Name:      "migrate",
				Usage:     "migrate database",
				ArgsUsage: "[module]",
				Action: func(c *cli.Context) error {
					return withMigrators(c, func(name string, m *migrate.Migrator) error {
						if err := m.Lock(c.Context); err != nil {
							return err
						}
						defer m.Unlock(c.Context) //nolint:errcheck

						group, err := m.Migrate(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Printf("No new migrations to run for module: %s\n", name)
							return nil
						}
						fmt.Printf("Migrated module %s to %s\n", name, group)
						return nil
					})
				},
			},
			{
				Name:      "rollback",
				Usage:     "rollback the last migration group",
				ArgsUsage: "[module]",
				Action: func(c *cli.Context) error {
					return withMigrators(c, func(name string, m *migrate.Migrator) error {
						if err := m.Lock(c.Context); err != nil {
							return err
						}
						defer m.Unlock(c.Context) //nolint:errcheck

						group, err := m.Rollback(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Printf("No groups to roll back for module: %s\n", name)
							return nil
						}
						fmt.Printf("Rolled back module %s from %s\n", name, group)
						return nil
					})
				},
			},
			{
				Name:      "create_sql",
				Usage:     "create up and down SQL migrations",
				ArgsUsage: "<module> <name...>",
				Action: func(c *cli.Context) error {
					name := strings.Join(c.Args().Tail(), "_")
					if name == "" {
						return fmt.Errorf("migration name is required")
					}
					return withMigrators(c, func(module string, m *migrate.Migrator) error {
						files, err := m.CreateSQLMigrations(c.Context, name)
						if err != nil {
							return err
						}
						for _, mf := range files {
							fmt.Printf("Created migration for module %s: %s (%s)\n", module, mf.Name, mf.Path)
						}
						return nil
					})
				},
			},
			{
				Name:      "status",
				Usage:     "print migrations status",
				ArgsUsage: "[module]",
				Action: func(c *cli.Context) error {
					return withMigrators(c, func(name string, m *migrate.Migrator) error {
						ms, err := m.MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations for module: %s\n", name)
						fmt.Printf("  Applied: %s\n", ms.Applied())
						fmt.Printf("  Unapplied: %s\n", ms.Unapplied())
						return nil
					})
				},
			},
		},
	}
}

// newRiverCommand manages the job queue schema used by the river scheduler backend.
func newRiverCommand() *cli.Command {
	run := func(direction rivermigrate.Direction) cli.ActionFunc {
		return func(c *cli.Context) error {
			dsn, err := resolveDSN(c)
			if err != nil {
				return err
			}
			pool, err := pgxpool.New(c.Context, dsn)
			if err != nil {
				return fmt.Errorf("failed to open pgx pool: %w", err)
			}
			defer pool.Close()

			var migrator *rivermigrate.Migrator[pgx.Tx]
			migrator, err = rivermigrate.New(riverpgxv5.New(pool), nil)
			if err != nil {
				return fmt.Errorf("failed to create River migrator: %w", err)
			}

			opts := &rivermigrate.MigrateOpts{}
			if direction == rivermigrate.DirectionDown {
				opts.MaxSteps = 1
			}
			res, err := migrator.Migrate(c.Context, direction, opts)
			if err != nil {
				return err
			}
			if len(res.Versions) == 0 {
				fmt.Println("No River migrations to apply")
			}
			for _, v := range res.Versions {
				fmt.Printf("River migration %s: version %d\n", direction, v.Version)
			}
			return nil
		}
	}

	return &cli.Command{
		Name:  "river",
		Usage: "job queue migrations",
		Subcommands: []*cli.Command{
			{Name: "migrate", Usage: "apply pending River migrations", Action: run(rivermigrate.DirectionUp)},
			{Name: "rollback", Usage: "roll back the last River migration", Action: run(rivermigrate.DirectionDown)},
		},
	}
}
