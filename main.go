package main

import (
	"os"

	"github.com/prepdeck/interviewd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
