package main

import (
	"os"

	"ledgerengine/cmd/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
