package eventmigrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the event module's schema history.
var Migrations = migrate.NewMigrations()
