package main

import (
	"os"

	"github.com/abhisek/geoquiz/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
