package main

import (
	"os"

	"github.com/Rana718/fireseed/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
