package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/kickoff/internal/adapters/repository/sqlite"
	"github.com/okian/kickoff/internal/seed"
	"github.com/okian/kickoff/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers = 40
	defaultSeed    = 1
	defaultBatch   = 500
)

func main() {
	var (
		dbPath      = flag.String("db", "kickoff.db", "SQLite database path")
		players     = flag.Int("players", defaultPlayers, "Number of players to generate")
		seedValue   = flag.Int64("seed", defaultSeed, "Generator seed")
		performance = flag.Bool("performance", true, "Also generate performance history")
		batch       = flag.Int("batch", defaultBatch, "Players written per transaction")
		outputFile  = flag.String("output", "", "Optional JSON dump of the generated roster")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *dbPath, &seed.Config{
		Players:     *players,
		Seed:        *seedValue,
		Performance: *performance,
		BatchSize:   *batch,
		OutputFile:  *outputFile,
	}); err != nil {
		logger.Get().Error(ctx, "seeding failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath string, cfg *seed.Config) error {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close database", logger.Error(err))
		}
	}()

	_, err = seed.Run(ctx, cfg, store)
	return err
}
