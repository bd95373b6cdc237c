// Package main provides the Query++ command-line tool.
package main

import (
	"os"

	"github.com/queryplus/queryplus/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
