package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	flag.StringVar(&settings.configPath, "config", "config/default.yaml", "path to config file")
	flag.StringVar(&settings.host, "host", "", "socket server host (default from SOCKET_HOST or config)")
	flag.IntVar(&settings.port, "port", 0, "socket server port (default from SOCKET_PORT or config)")

	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "ledger")
	}
	commander.Register(&replCmd{in: os.Stdin, out: os.Stdout}, "interactive")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
