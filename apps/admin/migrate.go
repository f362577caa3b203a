package main

import (
	"github.com/trezcool/sciencequest/storage/database"
)

func (cli *commandLine) migrate(args []string) error {
	if gooseRunFunc != nil {
		return database.MigrateWith(gooseRunFunc, cli.db, args[0], args[1:]...)
	}
	return database.Migrate(cli.db, args[0], args[1:]...)
}
