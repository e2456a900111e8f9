package main

import (
	"os"

	"github.com/dvloznov/finance-ledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
