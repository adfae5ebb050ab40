package main

import (
	"os"

	"github.com/permealab/hcellrun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
