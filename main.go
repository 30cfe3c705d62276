package main

import (
	"os"

	"github.com/iamgilwell/proctopo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
