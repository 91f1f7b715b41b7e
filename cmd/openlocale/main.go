package main

import (
	"os"

	"github.com/openlocale/openlocale/cmd/openlocale/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
