// Package main is the entry point for the kbstore service.
package main

import (
	"os"

	"github.com/tliops/kbsync/cmd/kbstore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
