package countdb

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
		CREATE TABLE crossing(
			id INTEGER PRIMARY KEY,
			time INT NOT NULL,
			camera INT NOT NULL,
			line INT NOT NULL,
			direction TEXT NOT NULL,
			track_id INT NOT NULL,
			class TEXT NOT NULL
		);
		CREATE INDEX idx_crossing_time ON crossing (time);
		CREATE INDEX idx_crossing_camera_time ON crossing (camera, time);

	`))

	return migs
}
