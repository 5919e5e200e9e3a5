// Package main is the entry point for the openwtv application.
package main

import (
	"os"

	"github.com/jmylchreest/openwtv/cmd/openwtv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
