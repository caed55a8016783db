package main

import (
	"os"

	"github.com/moolen/telcoagent/cmd/telcoagent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
