package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/hostel/storage/database"
)

var (
	migrateFunc = database.Migrate // mockable

	errNoDatabase = errors.New("migrations need the postgres database engine")
)

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return migrateFunc(ctx, cli.db, args[0], args[1:]...)
}
