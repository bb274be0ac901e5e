package main

import (
	"os"

	"github.com/lorraine/cropcast/cmd/cropcast/commands"
)

// main is the entry point for the cropcast CLI: go run ./cmd/cropcast [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
