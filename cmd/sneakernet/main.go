package main

import (
	"os"

	"sneakernet/cmd/sneakernet/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
