package main

import (
	"os"

	"github.com/laskarbuah/freelance-portal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
