// Package main provides the entry point for the cqs CLI.
package main

import (
	"os"

	"github.com/cqlabs/cqs/cmd/cqs/cmd"
)

func main() {
	os.Exit(int(cmd.Execute()))
}
