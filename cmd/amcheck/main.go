package main

import (
	"os"

	"github.com/solatis/amcheck/cmd/amcheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
