package main

import (
	"os"

	"github.com/user/release-tracker/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
