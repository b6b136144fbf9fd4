// Package main is the entry point for the pgquery CLI application.
// It runs SQL through a pgAdmin query tool server.
package main

import (
	"pgquery/cli/cmd"
)

// main is the entry point for the pgquery CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
