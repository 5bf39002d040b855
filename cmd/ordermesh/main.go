package main

import (
	"os"

	"github.com/ordermesh-systems/ordermesh/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
