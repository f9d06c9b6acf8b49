package main

import (
	"os"
)

var appName = "wmix"

func main() {
	app := newApp(os.Stdout, os.Stderr)

	if err := app.rootCmd().Execute(); err != nil {
		app.printError(err)
		os.Exit(1)
	}
}
