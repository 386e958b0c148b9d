package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/trogers1052/holdings-service/internal/config"
	"github.com/trogers1052/holdings-service/internal/database"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the database schema migrations" }
func (*migrateCmd) Usage() string {
	return `holdings migrate

  Applies every pending migration to the configured database.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running migrations: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Println("Migrations applied")
	return subcommands.ExitSuccess
}
