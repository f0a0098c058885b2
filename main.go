// Package main is the entry point for the firewatch service.
package main

import (
	"fmt"
	"os"

	"firewatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
