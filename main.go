package main

import (
	"fmt"
	"os"

	"github.com/jonesrussell/north-cloud/deal-finder/cmd"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
