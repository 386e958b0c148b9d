package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "", "Path to an optional YAML config file; environment variables still override it")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&serveCmd{}, "service")
	commander.Register(&migrateCmd{}, "service")
	commander.Register(&showCmd{}, "holdings")
	commander.Register(&publishCmd{}, "holdings")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
