// Package main is the entry point for the market-comps service.
package main

import (
	"os"

	"github.com/donaldgifford/market-comps/cmd/market-comps/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
