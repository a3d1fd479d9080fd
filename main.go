package main

import (
	"os"

	"github.com/omkarbandikatte/AI-Interview-Preparation/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
