package main

import (
	"os"

	"parlor/cmd/parlor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
