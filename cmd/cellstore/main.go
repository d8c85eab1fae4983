// Package main provides the entry point for the cellstore CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/vogtb/go-spreadsheet/cmd/cellstore/commands"
)

func main() {
	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
