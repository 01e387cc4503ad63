package main

import (
	"errors"
	"os"

	"github.com/jdefrancesco/dups/internal/config"

	"github.com/pterm/pterm"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

func main() {
	os.Exit(exitCode(rootCmd.Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	pterm.Error.Println(err.Error())

	var cerr *config.ConfigError
	if errors.As(err, &cerr) {
		return exitConfigError
	}
	return exitFailure
}
