// Command journal is the trade journal CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"trade-journal/internal/cli"
)

func main() {
	// Credentials may come from a local .env file
	_ = godotenv.Load()

	// The logger is replaced once the configuration has been loaded
	if err := cli.NewRootCmd(nil, zerolog.Nop()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
