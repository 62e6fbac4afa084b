// Package main provides the entry point for the servicereport CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/servicereport/cmd/servicereport/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
