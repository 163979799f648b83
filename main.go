package main

import (
	"os"

	"github.com/arunmenon/text2sql/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
