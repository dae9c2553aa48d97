package main

import (
	"os"

	"github.com/rustyeddy/tradeview/cmd/tradeview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
