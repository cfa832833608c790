// Package main is the entry point for trunkgo.
package main

import (
	"os"

	"github.com/jmylchreest/trunkgo/cmd/trunk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
