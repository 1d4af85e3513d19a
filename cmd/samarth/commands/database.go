package commands

import (
	"database/sql"

	"github.com/teranos/samarth/db"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
)

// openDatabase opens and migrates the database at path
func openDatabase(path string) (*sql.DB, error) {
	database, err := db.OpenWithMigrations(path, logger.ComponentLogger("db"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	return database, nil
}
