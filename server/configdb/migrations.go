package configdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE camera(
			id INTEGER PRIMARY KEY,
			created_at INT NOT NULL,
			updated_at INT NOT NULL,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			enabled INT NOT NULL DEFAULT 1,
			tracker TEXT
		);

		CREATE TABLE system_config (key TEXT PRIMARY KEY, value TEXT NOT NULL);

	`))

	return migs
}
