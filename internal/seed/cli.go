package seed

import "os"

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	os.Stdout.WriteString(`Kickoff Roster Seeder
=====================

Generates a deterministic roster and loads it into a SQLite database.

Usage:
  go run ./cmd/seed [options]

Options:
  -db string
        SQLite database path (default "kickoff.db")
  -players int
        Number of players to generate (default 40)
  -seed int
        Generator seed; equal seeds produce equal rosters (default 1)
  -performance
        Also generate performance history (default true)
  -batch int
        Players written per transaction (default 500)
  -output string
        Optional JSON dump of the generated roster
  -help
        Show this help message

Examples:
  # Seed the default database
  go run ./cmd/seed

  # Seed a larger roster without performance history
  go run ./cmd/seed -players 200 -performance=false -db /tmp/kickoff.db
`)
}
