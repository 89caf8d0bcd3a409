// Package main is the entry point for the scalyfin daemon.
package main

import (
	"os"

	"github.com/scalyfin/scalyfin/cmd/scalyfin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
