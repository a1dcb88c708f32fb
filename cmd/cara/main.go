// Package main provides the entry point for the cara CLI.
package main

import (
	"os"

	"github.com/prajwal-28/context-aware-research-assistant/cmd/cara/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
