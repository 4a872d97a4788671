package main

import (
	cmd "github.com/beamdrop/beamdrop/internal/cli"
	"github.com/beamdrop/beamdrop/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
