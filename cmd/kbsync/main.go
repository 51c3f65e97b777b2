// Package main is the entry point for the kbsync CLI.
package main

import (
	"os"

	"github.com/tliops/kbsync/cmd/kbsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
