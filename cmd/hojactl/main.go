package main

import (
	"os"

	"github.com/fedtaxi/hojaruta/cmd/hojactl/commands"
)

func main() {
	if err := commands.NewRootCommand(commands.Defaults()).Execute(); err != nil {
		os.Exit(1)
	}
}
